package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pano/internal/httpc"
)

type healthReport struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Sessions  int    `json:"sessions"`
	Observers int    `json:"observers"`
}

type sessionRow struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Remote    string    `json:"remote"`
	StartedAt time.Time `json:"started_at"`
	Frames    int       `json:"frames"`
}

type sessionList struct {
	Sessions []sessionRow `json:"sessions"`
}

func newStatusCmd(_ *globals) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show a capture host's health and running sessions",
		Example: `  pano status --url http://10.0.0.5:8765`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := strings.TrimRight(url, "/")
			c := httpc.NewClient(timeout)

			var health healthReport
			if err := httpc.GetJSON(cmd.Context(), c, base+"/health", &health); err != nil {
				return err
			}
			var list sessionList
			if err := httpc.GetJSON(cmd.Context(), c, base+"/api/sessions", &list); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "status: %s  version: %s  sessions: %d  observers: %d\n",
				health.Status, health.Version, health.Sessions, health.Observers)
			if len(list.Sessions) == 0 {
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tSTATE\tFRAMES\tREMOTE\tAGE")
			for _, s := range list.Sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Mode, s.State, s.Frames, s.Remote,
					time.Since(s.StartedAt).Truncate(time.Second))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8765", "Capture host HTTP base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", httpc.DefaultTimeout, "Request timeout")
	return cmd
}
