package vision

import (
	"context"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/capture"
	"github.com/teslashibe/go-pano/pkg/frame"
)

// Camera opens an OpenCV VideoCapture device or stream.
type Camera struct {
	device string
	width  int
	height int
	logger *slog.Logger
}

// NewCamera creates a camera opener. device is a numeric index ("0") or a
// file/stream URL. Zero width or height keeps the device default.
func NewCamera(device string, width, height int, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = log.L()
	}
	return &Camera{device: device, width: width, height: height, logger: logger}
}

// Open implements capture.Opener.
func (c *Camera) Open(ctx context.Context) (capture.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", capture.ErrSourceUnavailable, c.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s not opened", capture.ErrSourceUnavailable, c.device)
	}

	if c.width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	}
	if c.height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}

	c.logger.Info("camera: opened", "device", c.device)
	return &cameraSource{vc: vc, buf: gocv.NewMat(), device: c.device, logger: c.logger}, nil
}

type cameraSource struct {
	vc     *gocv.VideoCapture
	buf    gocv.Mat
	device string
	logger *slog.Logger
}

func (s *cameraSource) DiscardGrab() {
	s.vc.Grab(1)
}

func (s *cameraSource) ReadFrame() (frame.Image, bool) {
	if ok := s.vc.Read(&s.buf); !ok || s.buf.Empty() {
		return frame.Image{}, false
	}
	img, err := FromMat(s.buf)
	if err != nil {
		s.logger.Warn("camera: convert frame", "err", err)
		return frame.Image{}, false
	}
	return img, true
}

func (s *cameraSource) Release() error {
	s.buf.Close()
	s.logger.Info("camera: released", "device", s.device)
	return s.vc.Close()
}
