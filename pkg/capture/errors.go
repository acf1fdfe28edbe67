package capture

import "errors"

// Sentinel errors for capture-source conditions.
var (
	// ErrSourceUnavailable is returned when the frame source cannot be opened.
	ErrSourceUnavailable = errors.New("capture: source unavailable")

	// ErrSourceBusy is returned when the source is already leased by
	// another session.
	ErrSourceBusy = errors.New("capture: source busy")

	// ErrReleased is returned when a released source is used again.
	ErrReleased = errors.New("capture: source already released")
)
