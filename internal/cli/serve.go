package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/config"
	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/capture"
	"github.com/teslashibe/go-pano/pkg/hub"
	"github.com/teslashibe/go-pano/pkg/metrics"
	"github.com/teslashibe/go-pano/pkg/protocol"
	"github.com/teslashibe/go-pano/pkg/server"
	"github.com/teslashibe/go-pano/pkg/session"
	"github.com/teslashibe/go-pano/pkg/store"
	"github.com/teslashibe/go-pano/pkg/vision"
)

// Version is reported by /health; cmd/pano sets it.
var Version = "dev"

func newServeCmd(g *globals) *cobra.Command {
	var (
		host      string
		port      int
		framing   string
		device    string
		accessLog bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture host",
		Long: `Starts the capture host. Every websocket connection runs one session:

  /ws/panorama  capture, stitch and crop here, then send one RESULT or FAILURE
  /ws/frames    stream every captured frame as it is grabbed
  /ws/events    session state transitions as JSON
  /             /ws/panorama with legacy framing

The camera is leased to one session at a time; a second session fails
immediately instead of queueing.`,
		Example: `  # Serve on the default port with camera 0
  pano serve

  # Serve a video file with legacy framing for old consumers
  pano serve --device ./sweep.mp4 --framing legacy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("framing") {
				cfg.Server.Framing = framing
			}
			if cmd.Flags().Changed("device") {
				cfg.Camera.Device = device
			}
			if errs := cfg.Validate(); len(errs) > 0 {
				return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
			}

			return runServer(cmd.Context(), cfg, accessLog)
		},
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "Interface to listen on")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on")
	cmd.Flags().StringVar(&framing, "framing", config.FramingEnvelope, "Default framing: envelope or legacy")
	cmd.Flags().StringVar(&device, "device", "0", "Camera index, file or stream URL")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "Log every HTTP request")

	return cmd
}

func runServer(ctx context.Context, cfg config.Config, accessLog bool) error {
	logger := log.L()

	framing, err := protocol.ParseFraming(cfg.Server.Framing)
	if err != nil {
		return err
	}

	camera := vision.NewCamera(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height, logger)
	opts := session.Options{
		Opener:    capture.NewExclusive(camera),
		Scheduler: capture.NewScheduler(cfg.Capture, logger),
		Stitcher:  vision.NewStitcher(logger),
		Cropper:   vision.NewCropper(vision.CropConfig{Padding: cfg.Crop.Padding, Kernel: cfg.Crop.Kernel}, logger),
		Encoder:   vision.NewCodec(cfg.Server.WireFormat),
		Logger:    logger,
	}
	if archive := newArchive(cfg); archive != nil {
		opts.Archive = archive
	}

	events := hub.New("events", logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go events.Run(hubCtx)

	srv := server.New(server.Config{
		Framing:      framing,
		Linger:       cfg.Server.Linger,
		WriteTimeout: server.DefaultConfig().WriteTimeout,
		AccessLog:    accessLog,
		Version:      Version,
	}, opts, events, metrics.New(), logger)

	addr := cfg.Addr()
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("pano: capture host listening",
			"addr", addr,
			"panorama", fmt.Sprintf("ws://%s/ws/panorama", addr),
			"frames", fmt.Sprintf("ws://%s/ws/frames", addr),
			"device", cfg.Camera.Device,
			"framing", string(framing),
		)
		serverErr <- srv.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("pano: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("pano: shutdown failed", "err", err)
			return err
		}
		logger.Info("pano: stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

// newArchive returns nil when nothing is to be persisted.
func newArchive(cfg config.Config) *store.Archive {
	if !cfg.Output.SaveFrames && !cfg.Output.SaveResult {
		return nil
	}
	var framesDir, resultDir string
	if cfg.Output.SaveFrames {
		framesDir = cfg.Output.FramesDir
	}
	if cfg.Output.SaveResult {
		resultDir = cfg.Output.ResultDir
	}
	return store.NewArchive(vision.NewCodec(cfg.Output.Format), framesDir, resultDir)
}
