package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// NewWatchCmd builds the "watch" subcommand: stream GET /changes and
// print every coalesced change batch as it arrives. Unlike submit, kill,
// and status, this talks to the server with a plain net/http client
// rather than resty: resty's Response buffers and decodes a full body,
// which doesn't fit a connection meant to stay open and keep emitting
// events for as long as the command runs.
func NewWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "watch",
		Short:        "stream the server's rate-limited change feed",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadClientConfig(configPath)
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimSuffix(cfg.Client.URL, "/")+"/changes", nil)
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			req.Header.Set("Authorization", "Bearer "+cfg.Client.Token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return &ExitError{Code: 3, Message: err.Error()}
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return &ExitError{Code: 3, Message: fmt.Sprintf("watch: http %d", resp.StatusCode)}
			}

			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				data, ok := strings.CutPrefix(line, "data:")
				if !ok {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(data))
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the HCL configuration file (client profile)")
	cmd.MarkFlagRequired("config")
	return cmd
}
