// Package cli implements the pano command tree.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/config"
	"github.com/teslashibe/go-pano/internal/log"
)

// globals holds state shared by every subcommand once PersistentPreRunE
// has run.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "pano",
		Short: "Capture, stitch and crop camera panoramas over websockets",
		Long: `pano runs a capture host that grabs a short burst of camera frames,
stitches them into a panorama and trims it to the largest rectangle of real
content, and the consumers that fetch the result or the raw frames.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return g.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "pano.yaml", "Config file (missing file uses defaults)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text or json")

	cmd.AddCommand(
		newServeCmd(g),
		newFetchCmd(g),
		newFramesCmd(g),
		newCropCmd(g),
		newStatusCmd(g),
	)
	return cmd
}

func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	g.cfg = cfg
	return nil
}
