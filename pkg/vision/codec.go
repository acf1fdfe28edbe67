package vision

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pano/pkg/frame"
)

// Codec encodes frames to a compressed file format and back.
type Codec struct {
	ext gocv.FileExt
}

// NewCodec returns a codec for ".jpg"/".jpeg" or ".png". Anything else
// falls back to JPEG.
func NewCodec(ext string) Codec {
	switch strings.ToLower(ext) {
	case ".png", "png":
		return Codec{ext: gocv.PNGFileExt}
	default:
		return Codec{ext: gocv.JPEGFileExt}
	}
}

// Ext returns the file extension including the dot.
func (c Codec) Ext() string {
	return string(c.ext)
}

// Format returns the format name used in protocol metadata.
func (c Codec) Format() string {
	if c.ext == gocv.PNGFileExt {
		return "png"
	}
	return "jpeg"
}

// Encode compresses img.
func (c Codec) Encode(img frame.Image) ([]byte, error) {
	m, err := ToMat(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	buf, err := gocv.IMEncode(c.ext, m)
	if err != nil {
		return nil, fmt.Errorf("vision: encode %s: %w", c.ext, err)
	}
	defer buf.Close()

	return buf.GetBytes(), nil
}

// Decode decompresses data into a BGR image.
func (c Codec) Decode(data []byte) (frame.Image, error) {
	if len(data) == 0 {
		return frame.Image{}, ErrInvalidImage
	}

	m, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return frame.Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	defer m.Close()

	if m.Empty() {
		return frame.Image{}, ErrInvalidImage
	}
	return FromMat(m)
}

// ReadFile loads an image file as BGR.
func ReadFile(path string) (frame.Image, error) {
	m := gocv.IMRead(path, gocv.IMReadColor)
	defer m.Close()

	if m.Empty() {
		return frame.Image{}, fmt.Errorf("%w: %s", ErrInvalidImage, path)
	}
	return FromMat(m)
}
