package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/client"
	"github.com/teslashibe/go-pano/pkg/protocol"
	"github.com/teslashibe/go-pano/pkg/store"
	"github.com/teslashibe/go-pano/pkg/vision"
)

func newFetchCmd(g *globals) *cobra.Command {
	var (
		url     string
		out     string
		framing string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Ask a capture host for a stitched panorama and save it",
		Example: `  pano fetch --url ws://10.0.0.5:8765
  pano fetch --url ws://10.0.0.5:8765 --framing legacy --out ./shots`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := protocol.ParseFraming(framing)
			if err != nil {
				return err
			}
			if out == "" {
				out = g.cfg.Output.ResultDir
			}

			cfg := client.DefaultConfig()
			cfg.BaseURL = url
			cfg.Framing = f
			c := client.New(cfg, log.L())

			res, err := c.FetchPanorama(cmd.Context(), vision.NewCodec(g.cfg.Output.Format))
			if errors.Is(err, client.ErrRemoteFailure) {
				log.Warn("pano: host could not produce a panorama")
				return err
			}
			if err != nil {
				return err
			}

			path, err := store.WriteUnique(out, "stitched_image", extFor(res.Format, g.cfg.Output.Format), res.Raw)
			if err != nil {
				return err
			}
			log.Info("pano: panorama saved",
				"path", path,
				"width", res.Image.Width,
				"height", res.Image.Height,
				"session", res.Session,
			)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "ws://localhost:8765", "Capture host base URL")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&framing, "framing", "envelope", "Wire framing: envelope or legacy")

	return cmd
}

// extFor maps a wire format name to a file extension. Legacy framing
// carries no format, so fallback is used.
func extFor(format, fallback string) string {
	switch format {
	case "png":
		return ".png"
	case "jpeg":
		return ".jpg"
	}
	return fallback
}
