package session

import "errors"

// Pipeline failures. Each one is sent to the consumer as a single FAILURE;
// the distinction only shows up in logs and events.
var (
	// ErrCaptureIncomplete is returned when fewer than two frames were
	// captured, so there is nothing to stitch.
	ErrCaptureIncomplete = errors.New("session: not enough frames to stitch")

	// ErrStitchFailed wraps a non-success status from the stitcher.
	ErrStitchFailed = errors.New("session: stitch failed")

	// ErrCropFailed wraps a cropper failure.
	ErrCropFailed = errors.New("session: crop failed")

	// ErrEncodeFailed wraps an image encoding failure.
	ErrEncodeFailed = errors.New("session: encode failed")

	// ErrAlreadyRun is returned when a session is run twice.
	ErrAlreadyRun = errors.New("session: already run")
)
