// Package capture acquires short bursts of frames from a camera-like
// source with warm-up and inter-capture delays.
package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/go-pano/pkg/frame"
)

// Source is an opened frame source, exclusively owned by one session.
type Source interface {
	// DiscardGrab grabs and drops one frame to flush stale buffers.
	DiscardGrab()

	// ReadFrame grabs and decodes one frame. ok is false when the
	// source produced nothing.
	ReadFrame() (img frame.Image, ok bool)

	// Release frees the underlying device.
	Release() error
}

// Opener opens a Source.
type Opener interface {
	Open(ctx context.Context) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Source, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Source, error) {
	return f(ctx)
}

// Guard wraps src so that Release reaches the underlying source at most
// once, however many times it is called.
func Guard(src Source) Source {
	if g, ok := src.(*guarded); ok {
		return g
	}
	return &guarded{Source: src}
}

type guarded struct {
	Source
	once  sync.Once
	err   error
	after func()
}

func (g *guarded) Release() error {
	g.once.Do(func() {
		g.err = g.Source.Release()
		if g.after != nil {
			g.after()
		}
	})
	return g.err
}
