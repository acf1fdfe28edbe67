package vision

import (
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/frame"
)

// CropConfig holds the cropper tunables.
type CropConfig struct {
	Padding int // Black border added on every side before contour search
	Kernel  int // Erosion structuring element size (odd)
}

// DefaultCropConfig pads by 10 px and erodes with a 3x3 rectangle.
func DefaultCropConfig() CropConfig {
	return CropConfig{Padding: 10, Kernel: 3}
}

// CropResult describes how a panorama was cropped.
type CropResult struct {
	Window   image.Rectangle // Crop window in padded coordinates
	Erosions int             // Shrink iterations performed
}

// Cropper trims a stitched panorama to the largest axis-aligned rectangle
// of real (non-black) content.
type Cropper struct {
	cfg    CropConfig
	logger *slog.Logger
}

// NewCropper creates a cropper. A nil logger uses the global logger.
func NewCropper(cfg CropConfig, logger *slog.Logger) *Cropper {
	if logger == nil {
		logger = log.L()
	}
	if cfg.Kernel < 1 {
		cfg.Kernel = DefaultCropConfig().Kernel
	}
	return &Cropper{cfg: cfg, logger: logger}
}

// Crop returns the cropped panorama.
func (c *Cropper) Crop(pano frame.Image) (frame.Image, error) {
	img, _, err := c.CropWithResult(pano)
	return img, err
}

// CropWithResult is Crop that also reports the crop window.
func (c *Cropper) CropWithResult(pano frame.Image) (frame.Image, CropResult, error) {
	src, err := ToMat(pano)
	if err != nil {
		return frame.Image{}, CropResult{}, err
	}
	defer src.Close()

	out, res, err := c.CropMat(src)
	if err != nil {
		return frame.Image{}, res, err
	}
	defer out.Close()

	img, err := FromMat(out)
	return img, res, err
}

// CropMat pads src, finds the inscribed content rectangle and returns a new
// Mat holding that window of the padded image.
func (c *Cropper) CropMat(src gocv.Mat) (gocv.Mat, CropResult, error) {
	p := c.cfg.Padding
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(src, &padded, p, p, p, p, gocv.BorderConstant, blackRGBA)

	mask := ContentMask(padded)
	defer mask.Close()

	window, erosions, err := c.InscribedRect(mask)
	res := CropResult{Window: window, Erosions: erosions}
	if err != nil {
		c.logger.Warn("crop: no content", "err", err, "erosions", erosions)
		return gocv.NewMat(), res, err
	}

	region := padded.Region(window)
	defer region.Close()

	c.logger.Debug("crop: window found",
		"x", window.Min.X, "y", window.Min.Y,
		"width", window.Dx(), "height", window.Dy(),
		"erosions", erosions,
	)
	return region.Clone(), res, nil
}

// InscribedRect finds the largest axis-aligned rectangle lying entirely
// inside the non-zero pixels of mask.
//
// The bounding rectangle of the largest external contour is filled into a
// candidate mask, then eroded step by step until nothing of it overhangs
// the content. The exit test is the emptiness of that overhang, so a
// candidate already inside the content is returned without erosion.
func (c *Cropper) InscribedRect(mask gocv.Mat) (image.Rectangle, int, error) {
	outer, ok := largestContourRect(mask)
	if !ok {
		return image.Rectangle{}, 0, ErrEmptyContent
	}

	candidate := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), mask.Rows(), mask.Cols(), gocv.MatTypeCV8UC1)
	defer candidate.Close()
	gocv.Rectangle(&candidate, outer, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(c.cfg.Kernel, c.cfg.Kernel))
	defer kernel.Close()

	remainder := gocv.NewMat()
	defer remainder.Close()
	gocv.Subtract(candidate, mask, &remainder)

	erosions := 0
	for gocv.CountNonZero(remainder) > 0 {
		gocv.Erode(candidate, &candidate, kernel)
		gocv.Subtract(candidate, mask, &remainder)
		erosions++
	}

	window, ok := largestContourRect(candidate)
	if !ok {
		return image.Rectangle{}, erosions, ErrEmptyContent
	}
	return window, erosions, nil
}

// ContentMask converts img to a binary mask where every non-black pixel is
// 255. The caller owns the returned Mat.
func ContentMask(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	mask := gocv.NewMat()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinary)
	return mask
}

// largestContourRect returns the bounding rectangle of the external contour
// with the largest area. ok is false when mask has no contours.
func largestContourRect(mask gocv.Mat) (rect image.Rectangle, ok bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return image.Rectangle{}, false
	}

	best, bestArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	return gocv.BoundingRect(contours.At(best)), true
}

var blackRGBA = color.RGBA{}
