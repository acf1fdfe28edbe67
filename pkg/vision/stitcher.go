package vision

import (
	"context"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/frame"
)

// Stitcher wraps cv::Stitcher in panorama mode. A fresh native stitcher is
// created per call, so one Stitcher may serve concurrent sessions.
type Stitcher struct {
	logger *slog.Logger
}

// NewStitcher creates a panorama stitcher.
func NewStitcher(logger *slog.Logger) *Stitcher {
	if logger == nil {
		logger = log.L()
	}
	return &Stitcher{logger: logger}
}

// Stitch combines the batch, in order, into one panorama. A non-success
// status is returned as *StitchError. The call runs to completion once
// started; ctx is only checked beforehand.
func (s *Stitcher) Stitch(ctx context.Context, batch frame.Batch) (frame.Image, error) {
	if err := ctx.Err(); err != nil {
		return frame.Image{}, err
	}
	if !batch.CanStitch() {
		return frame.Image{}, &StitchError{Status: StitchErrNeedMoreImages}
	}

	mats := make([]gocv.Mat, 0, len(batch))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for _, img := range batch {
		m, err := ToMat(img)
		if err != nil {
			return frame.Image{}, err
		}
		mats = append(mats, m)
	}

	st := gocv.NewStitcher(gocv.StitcherPanorama)
	defer st.Close()

	pano := gocv.NewMat()
	defer pano.Close()

	status := int(st.Stitch(mats, &pano))
	if status != StitchOK {
		s.logger.Warn("stitch: failed", "status", status, "reason", StatusText(status), "frames", len(batch))
		return frame.Image{}, &StitchError{Status: status}
	}

	s.logger.Info("stitch: panorama ready", "frames", len(batch), "width", pano.Cols(), "height", pano.Rows())
	return FromMat(pano)
}
