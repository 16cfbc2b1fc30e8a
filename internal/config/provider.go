// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
)

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath string
		// LookupEnv reads environment overrides. Defaults to os.LookupEnv.
		LookupEnv func(key string) (string, bool)
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		// Load returns the merged configuration and the file it came from
		// ("" when only defaults and the environment applied).
		Load(ctx context.Context, opts LoadOptions) (*Config, string, error)
	}

	fileProvider struct{}
)

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	return loadWithOptions(ctx, opts)
}
