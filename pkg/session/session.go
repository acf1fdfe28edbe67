// Package session runs one consumer connection's worth of work: open the
// capture source, capture a burst of frames, then either stream them or
// stitch and crop them into a single panorama.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/capture"
	"github.com/teslashibe/go-pano/pkg/frame"
	"github.com/teslashibe/go-pano/pkg/protocol"
)

// Stitcher combines an ordered batch into one panorama.
type Stitcher interface {
	Stitch(ctx context.Context, batch frame.Batch) (frame.Image, error)
}

// Cropper trims a panorama to its content rectangle.
type Cropper interface {
	Crop(pano frame.Image) (frame.Image, error)
}

// Encoder compresses an image for transfer.
type Encoder interface {
	Encode(img frame.Image) ([]byte, error)
	Format() string
}

// Sender delivers one message to the consumer.
type Sender interface {
	Send(ctx context.Context, msg *protocol.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg *protocol.Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg *protocol.Message) error {
	return f(ctx, msg)
}

// Archive persists intermediate and final artifacts.
type Archive interface {
	SaveFrame(index int, img frame.Image) (string, error)
	SaveResult(img frame.Image) (string, error)
}

// Options wires a session to its collaborators. Archive and Observer are
// optional.
type Options struct {
	Opener    capture.Opener
	Scheduler *capture.Scheduler
	Stitcher  Stitcher
	Cropper   Cropper
	Encoder   Encoder
	Archive   Archive
	Observer  Observer
	Logger    *slog.Logger

	// Remote identifies the consumer in logs and listings.
	Remote string
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	State     State     `json:"state"`
	Remote    string    `json:"remote,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Frames    int       `json:"frames"`
}

// Session is a single consumer's run through the pipeline.
type Session struct {
	id     string
	mode   Mode
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	entered   time.Time
	startedAt time.Time
	frames    int
	requested int
	ran       bool
}

// New creates a session in the Accepted state.
func New(mode Mode, opts Options) *Session {
	id := uuid.New().String()

	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}

	now := time.Now()
	return &Session{
		id:        id,
		mode:      mode,
		opts:      opts,
		logger:    logger.With("session", id, "mode", string(mode)),
		state:     Accepted,
		entered:   now,
		startedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the exchange shape.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot for listings.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		Mode:      s.mode,
		State:     s.state,
		Remote:    s.opts.Remote,
		StartedAt: s.startedAt,
		Frames:    s.frames,
	}
}

// Run executes the exchange selected by the session mode.
func (s *Session) Run(ctx context.Context, send Sender) error {
	if s.mode == ModeFrames {
		_, err := s.StreamFrames(ctx, send)
		return err
	}
	return s.RunPipeline(ctx, send)
}

// RunPipeline captures, stitches, crops and sends exactly one terminal
// message: RESULT on success, FAILURE on any pipeline failure. Nothing is
// sent once ctx is done, since the consumer is gone. The capture source is
// released exactly once on every path.
func (s *Session) RunPipeline(ctx context.Context, send Sender) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.finish(err) }()

	s.advance(Event{State: SourceOpened})
	src, err := s.opts.Opener.Open(ctx)
	if err != nil {
		return s.fail(ctx, send, err)
	}
	src = capture.Guard(src)
	defer s.release(src)

	s.advance(Event{State: Capturing})
	batch, err := s.opts.Scheduler.Capture(ctx, src)
	s.release(src)

	requested := s.opts.Scheduler.Config().Count
	s.setFrames(batch.Len(), requested)
	if err != nil {
		return s.fail(ctx, send, err)
	}
	s.saveFrames(batch)

	if batch.Len() < requested {
		s.logger.Warn("session: capture incomplete", "frames", batch.Len(), "requested", requested)
	}
	if !batch.CanStitch() {
		s.advance(Event{State: Sending, Frames: batch.Len(), Requested: requested})
		return s.sendFailure(ctx, send, fmt.Errorf("%w: got %d of %d", ErrCaptureIncomplete, batch.Len(), requested))
	}

	s.advance(Event{State: Stitching, Frames: batch.Len(), Requested: requested})
	pano, err := s.stitch(ctx, batch)
	if err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrStitchFailed, err)
		}
		return s.fail(ctx, send, err)
	}

	s.advance(Event{State: Cropping})
	cropped, err := s.opts.Cropper.Crop(pano)
	if err != nil {
		return s.fail(ctx, send, fmt.Errorf("%w: %w", ErrCropFailed, err))
	}
	s.saveResult(cropped)

	data, err := s.opts.Encoder.Encode(cropped)
	if err != nil {
		return s.fail(ctx, send, fmt.Errorf("%w: %w", ErrEncodeFailed, err))
	}

	msg, err := protocol.NewResultMessage(cropped.Width, cropped.Height, s.opts.Encoder.Format(), data, s.id, batch.Len())
	if err != nil {
		return s.fail(ctx, send, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	s.advance(Event{State: Sending})
	if err := send.Send(ctx, msg); err != nil {
		return fmt.Errorf("session: send result: %w", err)
	}

	s.logger.Info("session: panorama sent",
		"width", cropped.Width, "height", cropped.Height,
		"bytes", len(data), "frames", batch.Len(),
	)
	return nil
}

// StreamFrames sends every captured frame as a FRAME message in capture
// order and returns how many were sent. The exchange has no terminal
// message: the consumer sees the connection close, possibly early.
func (s *Session) StreamFrames(ctx context.Context, send Sender) (sent int, err error) {
	if err := s.begin(); err != nil {
		return 0, err
	}
	defer func() { s.finish(err) }()

	s.advance(Event{State: SourceOpened})
	src, err := s.opts.Opener.Open(ctx)
	if err != nil {
		s.logger.Error("session: open source", "err", err)
		return 0, err
	}
	src = capture.Guard(src)
	defer s.release(src)

	s.advance(Event{State: Capturing})
	requested := s.opts.Scheduler.Config().Count
	s.setFrames(0, requested)
	delivered := 0
	sent, err = s.opts.Scheduler.Stream(ctx, src, func(index int, img frame.Image) error {
		if s.opts.Archive != nil {
			if _, err := s.opts.Archive.SaveFrame(index, img); err != nil {
				s.logger.Warn("session: save frame", "frame", index, "err", err)
			}
		}

		data, err := s.opts.Encoder.Encode(img)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEncodeFailed, err)
		}
		msg, err := protocol.NewFrameMessage(img.Width, img.Height, s.opts.Encoder.Format(), data, uint64(index), requested)
		if err != nil {
			return err
		}
		if err := send.Send(ctx, msg); err != nil {
			return err
		}
		delivered++
		s.setFrames(delivered, requested)
		s.logger.Debug("session: frame sent", "frame", index, "bytes", len(data))
		return nil
	})
	s.release(src)
	s.setFrames(sent, requested)

	if sent < requested {
		s.logger.Warn("session: stream ended early", "frames", sent, "requested", requested, "err", err)
	}
	return sent, err
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true
	return nil
}

// fail reports cause to the consumer unless the consumer is gone.
func (s *Session) fail(ctx context.Context, send Sender, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	s.advance(Event{State: Sending})
	return s.sendFailure(ctx, send, cause)
}

func (s *Session) sendFailure(ctx context.Context, send Sender, cause error) error {
	s.logger.Warn("session: pipeline failed", "err", cause)
	if err := send.Send(ctx, protocol.NewFailureMessage(s.id)); err != nil {
		s.logger.Error("session: send failure", "err", err)
		return errors.Join(cause, fmt.Errorf("session: send failure: %w", err))
	}
	return cause
}

func (s *Session) stitch(ctx context.Context, batch frame.Batch) (frame.Image, error) {
	type result struct {
		img frame.Image
		err error
	}

	done := make(chan result, 1)
	go func() {
		img, err := s.opts.Stitcher.Stitch(ctx, batch)
		done <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return frame.Image{}, ctx.Err()
	case r := <-done:
		return r.img, r.err
	}
}

func (s *Session) release(src capture.Source) {
	if err := src.Release(); err != nil {
		s.logger.Warn("session: release source", "err", err)
	}
}

func (s *Session) saveFrames(batch frame.Batch) {
	if s.opts.Archive == nil {
		return
	}
	for i, img := range batch {
		if _, err := s.opts.Archive.SaveFrame(i+1, img); err != nil {
			s.logger.Warn("session: save frame", "frame", i+1, "err", err)
		}
	}
}

func (s *Session) saveResult(img frame.Image) {
	if s.opts.Archive == nil {
		return
	}
	path, err := s.opts.Archive.SaveResult(img)
	if err != nil {
		s.logger.Warn("session: save result", "err", err)
		return
	}
	if path != "" {
		s.logger.Info("session: result saved", "path", path)
	}
}

func (s *Session) setFrames(n, requested int) {
	s.mu.Lock()
	s.frames = n
	s.requested = requested
	s.mu.Unlock()
}

func (s *Session) finish(err error) {
	ev := Event{State: Closed, Outcome: OutcomeSuccess}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ev.Outcome = OutcomeCanceled
		ev.Err = err.Error()
	default:
		ev.Outcome = OutcomeFailure
		ev.Err = err.Error()
	}

	s.mu.Lock()
	ev.Frames = s.frames
	ev.Requested = s.requested
	s.mu.Unlock()

	s.advance(ev)
	s.logger.Info("session: closed", "outcome", string(ev.Outcome))
}

// advance moves to ev.State and publishes the transition.
func (s *Session) advance(ev Event) {
	now := time.Now()

	s.mu.Lock()
	ev.Session = s.id
	ev.Mode = s.mode
	ev.From = s.state
	ev.Elapsed = now.Sub(s.entered)
	ev.At = now
	s.state = ev.State
	s.entered = now
	s.mu.Unlock()

	s.logger.Debug("session: state", "from", ev.From.String(), "to", ev.State.String())
	if s.opts.Observer != nil {
		s.opts.Observer.Observe(ev)
	}
}
