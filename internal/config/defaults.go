package config

// Default values for configuration options, layer 0 of the override chain.
const (
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultConnectTimeout = "10s"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		ConnectTimeout: defaultConnectTimeout,
		Sites:          make(map[string]SiteConfig),
	}
}
