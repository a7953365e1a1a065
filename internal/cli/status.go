package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaygrid/relaygridgo/internal/model"
)

// NewStatusCmd builds the "status" subcommand: GET /target/{id} from a
// running server and print the full node, history included, as indented
// JSON.
func NewStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "status [id]",
		Short:        "print a node's current state and history",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(configPath)
			if err != nil {
				return err
			}

			var node model.Node
			resp, err := restyClient(cfg).R().SetResult(&node).Get("/target/" + args[0])
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			if resp.IsError() {
				return &ExitError{Code: 3, Message: fmt.Sprintf("status: http %d: %s", resp.StatusCode(), resp.String())}
			}

			encoded, err := json.MarshalIndent(&node, "", "  ")
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the HCL configuration file (client profile)")
	cmd.MarkFlagRequired("config")
	return cmd
}
