package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewKillCmd builds the "kill" subcommand: POST the given node ids to a
// running server's /kill and report how many it acknowledged.
func NewKillCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "kill [ids...]",
		Short:        "request cooperative kill of one or more nodes by id",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(configPath)
			if err != nil {
				return err
			}

			var out struct {
				Acknowledged int `json:"acknowledged"`
			}
			resp, err := restyClient(cfg).R().SetBody(args).SetResult(&out).Post("/kill")
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			if resp.IsError() {
				return &ExitError{Code: 3, Message: fmt.Sprintf("kill: http %d: %s", resp.StatusCode(), resp.String())}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "acknowledged %d\n", out.Acknowledged)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the HCL configuration file (client profile)")
	cmd.MarkFlagRequired("config")
	return cmd
}
