package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/store"
	"github.com/teslashibe/go-pano/pkg/vision"
)

func newCropCmd(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "crop <image>...",
		Short: "Trim stitched images to their largest rectangle of content",
		Args:  cobra.MinimumNArgs(1),
		Example: `  pano crop stitched_image/stitched_image.jpg
  pano crop --out ./cropped *.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cropper := vision.NewCropper(vision.CropConfig{
				Padding: g.cfg.Crop.Padding,
				Kernel:  g.cfg.Crop.Kernel,
			}, log.L())

			for _, in := range args {
				img, err := vision.ReadFile(in)
				if err != nil {
					return err
				}
				cropped, res, err := cropper.CropWithResult(img)
				if err != nil {
					return fmt.Errorf("%s: %w", in, err)
				}

				ext := filepath.Ext(in)
				codec := vision.NewCodec(ext)
				data, err := codec.Encode(cropped)
				if err != nil {
					return err
				}

				dir := out
				if dir == "" {
					dir = filepath.Dir(in)
				}
				base := strings.TrimSuffix(filepath.Base(in), ext) + "_cropped"
				path, err := store.WriteUnique(dir, base, codec.Ext(), data)
				if err != nil {
					return err
				}

				log.Info("pano: cropped",
					"in", in,
					"out", path,
					"width", cropped.Width,
					"height", cropped.Height,
					"erosions", res.Erosions,
				)
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default: next to each input)")
	return cmd
}
