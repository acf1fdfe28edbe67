package client

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteFailure is returned when the host sent FAILURE instead of a
	// panorama.
	ErrRemoteFailure = errors.New("client: remote reported failure")

	// ErrConnectionLost is returned when the connection closed before the
	// exchange completed. Any frames received so far are still returned.
	ErrConnectionLost = errors.New("client: connection closed early")

	// ErrUnexpectedMessage is returned for a message that does not belong
	// to the exchange.
	ErrUnexpectedMessage = errors.New("client: unexpected message")
)

// DecodeError reports a payload that is not valid encoded image data.
type DecodeError struct {
	// FrameID is set for raw frames; zero for the final panorama.
	FrameID uint64

	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.FrameID != 0 {
		return fmt.Sprintf("client: decode frame %d: %v", e.FrameID, e.Err)
	}
	return fmt.Sprintf("client: decode panorama: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
