// Package cli builds the cobra command tree relaygridd runs: serve starts
// the engine loop (and, under a server profile, the HTTP API alongside
// it); submit, kill, status, and watch are thin HTTP clients against a
// running server. Grounded on burstgridgo's internal/cli package for the
// ExitError convention and on kubegems-kubegems's cmd/apps command
// factories (NewXCmd() *cobra.Command, RunE, SilenceUsage) for shape —
// generalized from a single flag.FlagSet into a cobra command tree since
// the daemon has five distinct subcommands instead of one entrypoint.
package cli

// ExitError carries the process exit code a command's failure should
// produce, letting main() resolve os.Exit(code) without every RunE
// knowing about os.Exit itself.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}
