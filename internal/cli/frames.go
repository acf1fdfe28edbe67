package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/client"
	"github.com/teslashibe/go-pano/pkg/frame"
	"github.com/teslashibe/go-pano/pkg/session"
	"github.com/teslashibe/go-pano/pkg/store"
	"github.com/teslashibe/go-pano/pkg/vision"
)

func newFramesCmd(g *globals) *cobra.Command {
	var (
		url      string
		count    int
		out      string
		noStitch bool
	)

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Receive raw frames from a capture host and stitch them here",
		Long: `Receives every frame the host captures, saves each one under the frames
directory and then stitches and crops them locally. A host that drops
the connection early leaves the frames received so far; stitching still
runs when at least two arrived.`,
		Example: `  pano frames --url ws://10.0.0.5:8765
  pano frames --url ws://10.0.0.5:8765 --count 5 --no-stitch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if out == "" {
				out = cfg.Output.FramesDir
			}

			ccfg := client.DefaultConfig()
			ccfg.BaseURL = url
			c := client.New(ccfg, log.L())
			codec := vision.NewCodec(cfg.Output.Format)

			frames, err := c.FetchFrames(cmd.Context(), count, codec)
			if errors.Is(err, client.ErrConnectionLost) {
				log.Warn("pano: host closed before all frames arrived", "received", len(frames))
			} else if err != nil {
				return err
			}

			images := make([]frame.Image, 0, len(frames))
			for _, f := range frames {
				path, err := store.WriteUnique(out, fmt.Sprintf("image_%d", f.ID), cfg.Output.Format, f.Raw)
				if err != nil {
					return err
				}
				log.Debug("pano: frame saved", "id", f.ID, "path", path)
				images = append(images, f.Image)
			}
			log.Info("pano: frames received", "count", len(frames), "dir", out)

			if noStitch {
				return nil
			}
			batch := frame.Batch(images)
			if !batch.CanStitch() {
				return fmt.Errorf("%w: received %d", session.ErrCaptureIncomplete, batch.Len())
			}

			pano, err := vision.NewStitcher(log.L()).Stitch(cmd.Context(), batch)
			if err != nil {
				return fmt.Errorf("%w: %w", session.ErrStitchFailed, err)
			}
			cropper := vision.NewCropper(vision.CropConfig{Padding: cfg.Crop.Padding, Kernel: cfg.Crop.Kernel}, log.L())
			cropped, err := cropper.Crop(pano)
			if err != nil {
				return fmt.Errorf("%w: %w", session.ErrCropFailed, err)
			}

			path, err := store.NewArchive(codec, "", cfg.Output.ResultDir).SaveResult(cropped)
			if err != nil {
				return err
			}
			log.Info("pano: panorama saved", "path", path, "width", cropped.Width, "height", cropped.Height)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "ws://localhost:8765", "Capture host base URL")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Frames to expect (0 uses the count the host announces)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Directory for raw frames (default from config)")
	cmd.Flags().BoolVar(&noStitch, "no-stitch", false, "Only save the raw frames")

	return cmd
}
