package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoSite is returned by Resolve when no site was named and the config
// does not define exactly one.
var ErrNoSite = errors.New("config: no site selected")

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Select site: CLI > env > the only configured site
	name, err := selectSite(cfg, env.Site, cli.Site)
	if err != nil && !(cli.SiteOptional && errors.Is(err, ErrNoSite)) {
		return nil, err
	}

	site := cfg.Sites[name]

	// 4. Apply env overrides to the selected site
	if env.Secret != "" {
		site.Secret = env.Secret
	}

	if env.ClientID != "" {
		site.ClientID = env.ClientID
	}

	return &Resolved{
		Config:     cfg,
		ConfigPath: cfgPath,
		SiteName:   name,
		Site:       site,
	}, nil
}

func selectSite(cfg *Config, envSite, cliSite string) (string, error) {
	name := cliSite
	if name == "" {
		name = envSite
	}

	if name != "" {
		if _, ok := cfg.Sites[name]; !ok {
			return "", fmt.Errorf("site %q is not configured (known: %s)", name, siteList(cfg))
		}

		return name, nil
	}

	switch len(cfg.Sites) {
	case 0:
		return "", fmt.Errorf("%w: add a [site.<name>] section to the config file", ErrNoSite)
	case 1:
		for n := range cfg.Sites {
			return n, nil
		}
	}

	return "", fmt.Errorf("%w: use --site or %s to choose one of %s", ErrNoSite, EnvSite, siteList(cfg))
}

func siteList(cfg *Config) string {
	names := make([]string, 0, len(cfg.Sites))
	for n := range cfg.Sites {
		names = append(names, n)
	}

	if len(names) == 0 {
		return "none"
	}

	sort.Strings(names)

	return strings.Join(names, ", ")
}
