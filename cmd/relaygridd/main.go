// Command relaygridd runs and controls the dependency-graph execution
// engine: "serve" drives the tick loop (and, under a server profile, the
// HTTP API alongside it); "submit", "kill", "status", and "watch" are
// thin clients against a running server. Exit codes: 0 on a clean run or
// a client subcommand that succeeded, 2 on bad arguments, 3 on an
// unrecoverable startup or request failure, 4 when "serve" was running
// and stopped only because it was signaled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaygrid/relaygridgo/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		if ctx.Err() != nil {
			return 4
		}
		return 0
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Message)
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, err)
	return 3
}
