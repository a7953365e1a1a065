package cli

import (
	"fmt"

	"resty.dev/v3"

	"github.com/relaygrid/relaygridgo/internal/config"
)

// loadClientConfig decodes the HCL file at path and requires it to carry a
// client block; submit, kill, status, and watch are only meaningful
// against a configured remote.
func loadClientConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &ExitError{Code: 3, Message: err.Error()}
	}
	if cfg.Profile != config.ProfileClient {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("cli: %s configures the %s profile, not client", path, cfg.Profile)}
	}
	return cfg, nil
}

// restyClient builds the same shared-client, bearer-token shape
// internal/executor/remote already uses against this process's own
// executor plugins, pointed instead at a running relaygridd server's HTTP
// API.
func restyClient(cfg *config.Config) *resty.Client {
	return resty.New().SetBaseURL(cfg.Client.URL).SetAuthToken(cfg.Client.Token)
}
