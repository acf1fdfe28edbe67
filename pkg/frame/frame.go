// Package frame defines the in-memory image values that flow through the
// capture, stitch and crop stages.
package frame

import (
	"errors"
	"fmt"
	"image"
)

// ErrEmpty is returned when an operation needs a non-empty image.
var ErrEmpty = errors.New("frame: empty image")

// Image is an 8-bit interleaved pixel buffer in BGR (3 channels) or
// grayscale (1 channel) layout, row-major with no padding between rows.
//
// Images are treated as immutable values: stages produce new Images rather
// than mutating one another's buffers.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New allocates a zeroed (black) image.
func New(width, height, channels int) Image {
	return Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Empty reports whether the image has no pixels.
func (im Image) Empty() bool {
	return im.Width <= 0 || im.Height <= 0 || len(im.Pix) == 0
}

// Validate checks the buffer length against the declared geometry.
func (im Image) Validate() error {
	if im.Empty() {
		return ErrEmpty
	}
	if im.Channels != 1 && im.Channels != 3 {
		return fmt.Errorf("frame: unsupported channel count %d", im.Channels)
	}
	if want := im.Width * im.Height * im.Channels; len(im.Pix) != want {
		return fmt.Errorf("frame: pixel buffer is %d bytes, want %d", len(im.Pix), want)
	}
	return nil
}

// Bounds returns the image rectangle anchored at the origin.
func (im Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, im.Width, im.Height)
}

// Offset returns the index of the first byte of pixel (x, y).
func (im Image) Offset(x, y int) int {
	return (y*im.Width + x) * im.Channels
}

// Pixel returns the channel values at (x, y).
func (im Image) Pixel(x, y int) []byte {
	i := im.Offset(x, y)
	return im.Pix[i : i+im.Channels]
}

// Fill paints rect (clipped to the image) with the given channel values.
func (im Image) Fill(rect image.Rectangle, value ...byte) {
	rect = rect.Intersect(im.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			copy(im.Pix[im.Offset(x, y):], value[:im.Channels])
		}
	}
}

// Clone returns a deep copy.
func (im Image) Clone() Image {
	pix := make([]byte, len(im.Pix))
	copy(pix, im.Pix)
	im.Pix = pix
	return im
}

// String implements fmt.Stringer.
func (im Image) String() string {
	return fmt.Sprintf("%dx%dx%d", im.Width, im.Height, im.Channels)
}

// Batch is an ordered sequence of frames in capture order.
type Batch []Image

// Len returns the number of frames.
func (b Batch) Len() int {
	return len(b)
}

// CanStitch reports whether the batch has enough frames for a panorama.
func (b Batch) CanStitch() bool {
	return len(b) >= MinStitchFrames
}

// MinStitchFrames is the smallest batch the stitcher accepts.
const MinStitchFrames = 2
