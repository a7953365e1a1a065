package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaygrid/relaygridgo/internal/model"
)

// NewSubmitCmd builds the "submit" subcommand: read a JSON array of node
// shapes from a file and POST it to a running server's /add-nodes,
// printing the assigned id for each node in submission order.
func NewSubmitCmd() *cobra.Command {
	var configPath, file string

	cmd := &cobra.Command{
		Use:          "submit",
		Short:        "submit a batch of nodes to a running server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadClientConfig(configPath)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			var nodes []*model.Node
			if err := json.Unmarshal(data, &nodes); err != nil {
				return &ExitError{Code: 2, Message: fmt.Sprintf("submit: decode %s: %v", file, err)}
			}

			var out struct {
				IDs []string `json:"ids"`
			}
			resp, err := restyClient(cfg).R().SetBody(nodes).SetResult(&out).Post("/add-nodes")
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			if resp.IsError() {
				return &ExitError{Code: 3, Message: fmt.Sprintf("submit: http %d: %s", resp.StatusCode(), resp.String())}
			}

			for _, id := range out.IDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the HCL configuration file (client profile)")
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON file containing the node batch to submit")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("file")
	return cmd
}
