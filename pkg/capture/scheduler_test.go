package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pano/pkg/frame"
)

func solid(w, h int, v byte) frame.Image {
	img := frame.New(w, h, 3)
	img.Fill(img.Bounds(), v, v, v)
	return img
}

func fastConfig(count int) Config {
	return Config{Count: count, DiscardGrabs: 5}
}

func TestCapture_SkipsFailedGrabInOrder(t *testing.T) {
	src := NewMock(solid(4, 4, 1), frame.Image{}, solid(4, 4, 3))
	s := NewScheduler(fastConfig(3), nil)

	batch, err := s.Capture(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, byte(1), batch[0].Pix[0], "first frame should be grab #1")
	assert.Equal(t, byte(3), batch[1].Pix[0], "second frame should be grab #3")
	assert.Equal(t, 3, src.Reads())
	assert.Equal(t, 15, src.Discards(), "5 discard grabs per capture")
}

func TestCapture_AllGrabsFail(t *testing.T) {
	src := NewMock()
	s := NewScheduler(fastConfig(3), nil)

	batch, err := s.Capture(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestCapture_WarmupAndIntervalAreWaited(t *testing.T) {
	cfg := Config{Count: 2, Warmup: 20 * time.Millisecond, Interval: 10 * time.Millisecond, DiscardGrabs: 1}
	s := NewScheduler(cfg, nil)

	start := time.Now()
	batch, err := s.Capture(context.Background(), NewMock(solid(2, 2, 9), solid(2, 2, 9)))
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCapture_CancelledDuringWarmup(t *testing.T) {
	cfg := Config{Count: 3, Warmup: time.Hour, DiscardGrabs: 1}
	s := NewScheduler(cfg, nil)
	src := NewMock(solid(2, 2, 1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	batch, err := s.Capture(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, batch)
	assert.Zero(t, src.Reads(), "no grab should happen after cancellation")
}

func TestStream_CallbackErrorStops(t *testing.T) {
	src := NewMock(solid(2, 2, 1), solid(2, 2, 2), solid(2, 2, 3))
	s := NewScheduler(fastConfig(3), nil)
	boom := errors.New("send failed")

	var seen []int
	n, err := s.Stream(context.Background(), src, func(i int, _ frame.Image) error {
		seen = append(seen, i)
		if i == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestConfig_Validate(t *testing.T) {
	assert.Empty(t, DefaultConfig().Validate())

	bad := Config{Count: 0, Warmup: -1, Interval: -1, DiscardGrabs: 0}
	assert.Len(t, bad.Validate(), 4)
}
