package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/go-pano/pkg/frame"
)

// Mock is a scripted Source for testing. Each ReadFrame returns the next
// entry of Frames; an empty Image in the script is a failed grab, and an
// exhausted script fails every further grab.
type Mock struct {
	Frames []frame.Image

	// ReleaseFunc is called when Release is invoked.
	ReleaseFunc func() error

	mu       sync.Mutex
	next     int
	discards int
	reads    int
	releases int
}

// NewMock creates a mock source that yields frames in order.
func NewMock(frames ...frame.Image) *Mock {
	return &Mock{Frames: frames}
}

// DiscardGrab records the call.
func (m *Mock) DiscardGrab() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discards++
}

// ReadFrame returns the next scripted frame.
func (m *Mock) ReadFrame() (frame.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.next >= len(m.Frames) {
		return frame.Image{}, false
	}
	img := m.Frames[m.next]
	m.next++
	return img, !img.Empty()
}

// Release records the call.
func (m *Mock) Release() error {
	m.mu.Lock()
	m.releases++
	fn := m.ReleaseFunc
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

// Discards returns the number of DiscardGrab calls.
func (m *Mock) Discards() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discards
}

// Reads returns the number of ReadFrame calls.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Releases returns the number of Release calls.
func (m *Mock) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

// MockOpener hands out a fixed Source or error and counts opens.
type MockOpener struct {
	Source Source
	Err    error

	mu    sync.Mutex
	opens int
}

// Open returns Source or Err.
func (o *MockOpener) Open(ctx context.Context) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Source, nil
}

// Opens returns the number of Open calls.
func (o *MockOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}
