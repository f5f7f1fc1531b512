package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment variable names for overrides.
const (
	EnvConfig   = "SHAREPOINT_OAUTH_CONFIG"
	EnvSite     = "SHAREPOINT_OAUTH_SITE"
	EnvSecret   = "SHAREPOINT_OAUTH_SECRET"
	EnvClientID = "SHAREPOINT_OAUTH_CLIENT_ID"
)

// EnvOverrides holds values derived from environment variables.
// Secret and ClientID apply to the selected site only.
type EnvOverrides struct {
	ConfigPath string `env:"SHAREPOINT_OAUTH_CONFIG"`
	Site       string `env:"SHAREPOINT_OAUTH_SITE"`
	Secret     string `env:"SHAREPOINT_OAUTH_SECRET"`
	ClientID   string `env:"SHAREPOINT_OAUTH_CLIENT_ID"`
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() (EnvOverrides, error) {
	var e EnvOverrides
	if err := env.Parse(&e); err != nil {
		return EnvOverrides{}, fmt.Errorf("reading environment: %w", err)
	}

	return e, nil
}
