// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for sharepoint-oauth. It supports a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags) and named [site.<name>] sections, one per SharePoint site.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	ConnectTimeout string `toml:"connect_timeout"`
	TokenStore     string `toml:"token_store"`

	Sites map[string]SiteConfig `toml:"site"`
}

// SiteConfig is one [site.<name>] section. Secrets and flow-specific fields
// are optional here; the acquisition flows check what they need.
type SiteConfig struct {
	URL      string `toml:"url"`
	Secret   string `toml:"secret"`
	ClientID string `toml:"client_id"`
	Resource string `toml:"resource"`
	ACS      string `toml:"acs"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	Site       string // --site flag (empty = use env or the only site)

	// SiteOptional lets Resolve succeed without a selected site, for
	// commands that look at every site. A named but unknown site still fails.
	SiteOptional bool
}

// Resolved is the outcome of Resolve: the loaded config plus the selected
// site with environment overrides applied. SiteName is empty when the site
// was optional and none was selected.
type Resolved struct {
	*Config

	ConfigPath string
	SiteName   string
	Site       SiteConfig
}

// Timeout returns the parsed connect_timeout. Validate has already checked it.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0
	}

	return d
}

// TokenStorePath returns token_store, defaulting to the data directory.
func (c *Config) TokenStorePath() string {
	if c.TokenStore != "" {
		return c.TokenStore
	}

	return DefaultTokenStorePath()
}
