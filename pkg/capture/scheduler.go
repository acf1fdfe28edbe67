package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/frame"
)

// Config holds the capture timing parameters.
type Config struct {
	Count        int           `yaml:"count"`         // Frames to capture
	Warmup       time.Duration `yaml:"warmup"`        // Settling time before the first capture
	Interval     time.Duration `yaml:"interval"`      // Delay before each capture
	DiscardGrabs int           `yaml:"discard_grabs"` // Stale frames flushed before each real grab
}

// DefaultConfig returns the timings used by the handheld rig.
func DefaultConfig() Config {
	return Config{
		Count:        3,
		Warmup:       2 * time.Second,
		Interval:     5 * time.Second,
		DiscardGrabs: 5,
	}
}

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() []string {
	var errs []string
	if c.Count < 1 {
		errs = append(errs, "capture count must be at least 1")
	}
	if c.Warmup < 0 {
		errs = append(errs, "capture warmup must not be negative")
	}
	if c.Interval < 0 {
		errs = append(errs, "capture interval must not be negative")
	}
	if c.DiscardGrabs < 1 {
		errs = append(errs, "capture discard_grabs must be at least 1")
	}
	return errs
}

// Scheduler acquires a fixed number of frames from a Source.
//
// Delays are context-bound suspension points, so a cancelled session stops
// waiting immediately and concurrent sessions are never blocked.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
}

// NewScheduler creates a scheduler. A nil logger uses the global logger.
func NewScheduler(cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = log.L()
	}
	return &Scheduler{cfg: cfg, logger: logger}
}

// Config returns the scheduler's configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Capture waits out the warm-up and collects up to Count frames in capture
// order. Failed grabs are logged and skipped, so the batch may be short.
// The only error is context cancellation, returned with the frames
// gathered so far.
func (s *Scheduler) Capture(ctx context.Context, src Source) (frame.Batch, error) {
	batch := make(frame.Batch, 0, s.cfg.Count)
	_, err := s.Stream(ctx, src, func(_ int, img frame.Image) error {
		batch = append(batch, img)
		return nil
	})
	return batch, err
}

// Stream is Capture with a per-frame callback invoked in capture order as
// soon as each frame is grabbed. An error from fn stops the run. It
// returns the number of frames delivered.
func (s *Scheduler) Stream(ctx context.Context, src Source, fn func(index int, img frame.Image) error) (int, error) {
	s.logger.Info("capture: warming up", "warmup", s.cfg.Warmup)
	if err := wait(ctx, s.cfg.Warmup); err != nil {
		return 0, err
	}

	delivered := 0
	for i := 1; i <= s.cfg.Count; i++ {
		s.logger.Debug("capture: waiting before grab", "frame", i, "delay", s.cfg.Interval)
		if err := wait(ctx, s.cfg.Interval); err != nil {
			return delivered, err
		}

		for d := 0; d < s.cfg.DiscardGrabs; d++ {
			src.DiscardGrab()
		}

		img, ok := src.ReadFrame()
		if !ok || img.Empty() {
			s.logger.Warn("capture: failed grab", "frame", i)
			continue
		}

		if err := fn(i, img); err != nil {
			return delivered, fmt.Errorf("capture: deliver frame %d: %w", i, err)
		}
		delivered++
		s.logger.Info("capture: frame captured", "frame", i, "size", img.String())
	}

	return delivered, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
