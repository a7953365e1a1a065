package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaygrid/relaygridgo/internal/cache"
	"github.com/relaygrid/relaygridgo/internal/condition"
	"github.com/relaygrid/relaygridgo/internal/config"
	"github.com/relaygrid/relaygridgo/internal/ctxlog"
	"github.com/relaygrid/relaygridgo/internal/engine"
	"github.com/relaygrid/relaygridgo/internal/executor"
	"github.com/relaygrid/relaygridgo/internal/executor/local"
	"github.com/relaygrid/relaygridgo/internal/httpapi"
)

// minChangeInterval/maxChangeWait are the coalescing window C4's change
// stream is rate-limited to.
const (
	minChangeInterval = 2 * time.Second
	maxChangeWait     = 1 * time.Second
)

// NewServeCmd builds the "serve" subcommand: load configuration, open the
// store, warm the cache, wire the executor registry and condition
// evaluator, and run the engine's tick loop until the process is
// signaled. Under a server profile it also starts the HTTP API, wired to
// nudge the same engine loop on every submission.
func NewServeCmd() *cobra.Command {
	var configPath, logLevel, logFormat string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "run the engine loop, serving the HTTP API under a server profile",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}

			logger := ctxlog.New(logLevel, strings.ToLower(logFormat), cmd.OutOrStderr())
			ctx := ctxlog.WithLogger(cmd.Context(), logger)

			s, err := openStore(cfg.Engine.DatabaseURI)
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			defer s.Close()

			stream := cache.NewStream(minChangeInterval, maxChangeWait, nil)
			c := cache.New(s, stream)
			if err := c.Warm(ctx); err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}

			reg := executor.NewRegistry()
			reg.Register("local", local.New())

			eng := engine.New(s, c, reg, condition.New(), cfg.Engine)

			var wake chan struct{}
			if cfg.Profile == config.ProfileServer {
				tokens, err := httpapi.LoadTokenFile(logger, cfg.Server.AuthFile)
				if err != nil {
					return &ExitError{Code: 3, Message: err.Error()}
				}
				ln, err := httpapi.Listen(cfg.Server)
				if err != nil {
					return &ExitError{Code: 3, Message: err.Error()}
				}
				wake = make(chan struct{}, 1)
				srv := httpapi.New(s, c, tokens, wake)

				go func() {
					if err := httpapi.Serve(ctx, ln, srv.Router()); err != nil {
						logger.Error("httpapi: serve failed.", "error", err)
					}
				}()
			}

			if err := eng.Run(ctx, wake); err != nil && ctx.Err() == nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the HCL configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format: text or json")
	cmd.MarkFlagRequired("config")
	return cmd
}
