package cli

import "github.com/spf13/cobra"

// NewRootCmd builds the relaygridd command tree: serve runs the engine
// (and, under a server profile, the HTTP API); submit, kill, status, and
// watch are clients against a running server's HTTP API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relaygridd",
		Short:         "relaygridd runs and controls the dependency-graph execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd(), NewSubmitCmd(), NewKillCmd(), NewStatusCmd(), NewWatchCmd())
	return cmd
}
