package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors for vision operations.
var (
	// ErrEmptyContent is returned when the content mask has no contour to
	// crop to, e.g. an all-black panorama.
	ErrEmptyContent = errors.New("vision: no content region found")

	// ErrInvalidImage is returned when bytes do not decode to an image.
	ErrInvalidImage = errors.New("vision: invalid image data")

	// ErrUnsupportedMat is returned for Mats that are not 8-bit images.
	ErrUnsupportedMat = errors.New("vision: unsupported mat type")
)

// Status codes reported by cv::Stitcher.
const (
	StitchOK                   = 0
	StitchErrNeedMoreImages    = 1
	StitchErrHomographyEstFail = 2
	StitchErrCameraParamsFail  = 3
)

// StitchError carries the non-success status reported by the stitcher.
type StitchError struct {
	Status int
}

// Error implements the error interface.
func (e *StitchError) Error() string {
	return fmt.Sprintf("vision: stitch failed with status %d (%s)", e.Status, StatusText(e.Status))
}

// StatusText returns a readable name for a stitcher status code.
func StatusText(status int) string {
	switch status {
	case StitchOK:
		return "ok"
	case StitchErrNeedMoreImages:
		return "need more images"
	case StitchErrHomographyEstFail:
		return "homography estimation failed"
	case StitchErrCameraParamsFail:
		return "camera parameter adjustment failed"
	default:
		return "unknown"
	}
}
