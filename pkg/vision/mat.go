// Package vision adapts OpenCV (via gocv) to the frame types used by the
// capture pipeline: camera source, panorama stitcher, rectangle cropper and
// image codec.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pano/pkg/frame"
)

// ToMat copies img into a new Mat. The caller owns the returned Mat.
func ToMat(img frame.Image) (gocv.Mat, error) {
	if err := img.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	mt := gocv.MatTypeCV8UC3
	if img.Channels == 1 {
		mt = gocv.MatTypeCV8UC1
	}

	view, err := gocv.NewMatFromBytes(img.Height, img.Width, mt, img.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("vision: wrap pixels: %w", err)
	}
	defer view.Close()

	// Detach from the Go-owned buffer.
	return view.Clone(), nil
}

// FromMat copies an 8-bit gray, BGR or BGRA Mat into a frame.Image.
// BGRA is flattened to BGR.
func FromMat(m gocv.Mat) (frame.Image, error) {
	if m.Empty() {
		return frame.Image{}, frame.ErrEmpty
	}

	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
	case gocv.MatTypeCV8UC4:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(m, &bgr, gocv.ColorBGRAToBGR)
		return FromMat(bgr)
	default:
		return frame.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedMat, m.Type())
	}

	if !m.IsContinuous() {
		c := m.Clone()
		defer c.Close()
		m = c
	}

	img := frame.Image{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Pix:      m.ToBytes(),
	}
	return img, img.Validate()
}
