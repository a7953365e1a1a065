// Package config decodes the engine's single HCL configuration file into a
// typed profile. Grounded on burstgridgo's grid-file decoding pattern
// (previously internal/engine/decoder.go): hclparse.NewParser() followed by
// gohcl.DecodeBody against a struct carrying `hcl:"...,attr"` tags, just
// aimed at a profile/options schema instead of a workflow grid.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Profile selects which of the three deployment shapes this process runs
// as.
type Profile string

const (
	ProfileStandalone Profile = "standalone"
	ProfileServer     Profile = "server"
	ProfileClient     Profile = "client"
)

// engineBlock is the wire shape of the `engine { ... }` block. Durations
// are written in seconds since gohcl has no native time.Duration
// conversion; resolve() turns them into the EngineOptions the rest of the
// process uses.
type engineBlock struct {
	DatabaseURI                  string `hcl:"database_uri,optional"`
	HostTimeoutUpperBoundSeconds int    `hcl:"host_timeout_upper_bound_seconds,optional"`
	MaxSuccessiveAttempts        int    `hcl:"max_successive_attempts,optional"`
	ConcurrentSteps              int    `hcl:"concurrent_steps,optional"`
	MaxBlockingTimeSeconds       int    `hcl:"max_blocking_time_seconds,optional"`
	BlockStepTimeSeconds         int    `hcl:"block_step_time_seconds,optional"`
	ReadOnlyMode                 bool   `hcl:"read_only_mode,optional"`
}

// EngineOptions is the resolved, defaulted set of engine tunables.
type EngineOptions struct {
	DatabaseURI           string
	HostTimeoutUpperBound time.Duration
	MaxSuccessiveAttempts int
	ConcurrentSteps       int
	MaxBlockingTime       time.Duration
	BlockStepTime         time.Duration
	ReadOnlyMode          bool
}

// TLSConfig names the certificate/key pair for the server profile's HTTPS
// listener.
type TLSConfig struct {
	Cert string `hcl:"cert"`
	Key  string `hcl:"key"`
}

// ServerBlock configures the HTTP API surface of the server profile. Port
// alone means plain TCP; TLS present means HTTPS.
type ServerBlock struct {
	Port     int        `hcl:"port,optional"`
	TLS      *TLSConfig `hcl:"tls,block"`
	AuthFile string     `hcl:"auth_file"`
}

// ClientBlock configures the client profile: where the remote server is
// and which token to authenticate with.
type ClientBlock struct {
	URL   string `hcl:"url,optional"`
	Token string `hcl:"token,optional"`
}

// file is the top-level decoded shape of the configuration file. Exactly
// one of Standalone/Server/Client must be present, deciding the active
// profile.
type file struct {
	Engine     *engineBlock `hcl:"engine,block"`
	Standalone *struct{}    `hcl:"standalone,block"`
	Server     *ServerBlock `hcl:"server,block"`
	Client     *ClientBlock `hcl:"client,block"`
}

// Config is the resolved configuration this process runs with.
type Config struct {
	Profile Profile
	Engine  EngineOptions
	Server  *ServerBlock
	Client  *ClientBlock
}

func defaultEngineOptions() EngineOptions {
	return EngineOptions{
		HostTimeoutUpperBound: 60 * time.Second,
		MaxSuccessiveAttempts: 10,
		ConcurrentSteps:       4,
		MaxBlockingTime:       300 * time.Second,
		BlockStepTime:         3 * time.Second,
	}
}

// Load parses and decodes the HCL configuration file at path, applies
// defaults for every omitted engine option, and resolves which profile is
// active.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %s", path, diags.Error())
	}

	var decoded file
	diags = gohcl.DecodeBody(hclFile.Body, nil, &decoded)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %s", path, diags.Error())
	}

	return resolve(&decoded)
}

func resolve(decoded *file) (*Config, error) {
	opts := defaultEngineOptions()
	if decoded.Engine != nil {
		eb := decoded.Engine
		if eb.DatabaseURI != "" {
			opts.DatabaseURI = eb.DatabaseURI
		}
		if eb.MaxSuccessiveAttempts != 0 {
			opts.MaxSuccessiveAttempts = eb.MaxSuccessiveAttempts
		}
		if eb.ConcurrentSteps != 0 {
			opts.ConcurrentSteps = eb.ConcurrentSteps
		}
		if eb.HostTimeoutUpperBoundSeconds != 0 {
			opts.HostTimeoutUpperBound = time.Duration(eb.HostTimeoutUpperBoundSeconds) * time.Second
		}
		if eb.MaxBlockingTimeSeconds != 0 {
			opts.MaxBlockingTime = time.Duration(eb.MaxBlockingTimeSeconds) * time.Second
		}
		if eb.BlockStepTimeSeconds != 0 {
			opts.BlockStepTime = time.Duration(eb.BlockStepTimeSeconds) * time.Second
		}
		opts.ReadOnlyMode = eb.ReadOnlyMode
	}
	if opts.DatabaseURI == "" {
		return nil, fmt.Errorf("config: engine.database_uri is required")
	}

	count := 0
	if decoded.Standalone != nil {
		count++
	}
	if decoded.Server != nil {
		count++
	}
	if decoded.Client != nil {
		count++
	}
	if count != 1 {
		return nil, fmt.Errorf("config: exactly one of standalone/server/client must be configured, got %d", count)
	}

	cfg := &Config{Engine: opts}
	switch {
	case decoded.Standalone != nil:
		cfg.Profile = ProfileStandalone
	case decoded.Server != nil:
		if decoded.Server.Port == 0 && decoded.Server.TLS == nil {
			return nil, fmt.Errorf("config: server profile requires port or tls")
		}
		cfg.Profile = ProfileServer
		cfg.Server = decoded.Server
	case decoded.Client != nil:
		if decoded.Client.URL == "" || decoded.Client.Token == "" {
			return nil, fmt.Errorf("config: client profile requires url and token")
		}
		cfg.Profile = ProfileClient
		cfg.Client = decoded.Client
	}
	return cfg, nil
}
