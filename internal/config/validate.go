package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"
)

// minConnectTimeout is the smallest accepted connect_timeout.
const minConnectTimeout = 1 * time.Second

// Validate checks all configuration values and returns all errors found.
// Only global values and site URLs are checked here. Secrets, client ids,
// resources, and acs are checked by the acquisition flow that reads them:
// a site used only for the user flow needs no client id or acs.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateLogLevel(cfg.LogLevel)...)
	errs = append(errs, validateLogFormat(cfg.LogFormat)...)
	errs = append(errs, validateDurationMin("connect_timeout", cfg.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateSites(cfg.Sites)...)

	return errors.Join(errs...)
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateSites(sites map[string]SiteConfig) []error {
	names := make([]string, 0, len(sites))
	for n := range sites {
		names = append(names, n)
	}

	// Stable error order.
	sort.Strings(names)

	var errs []error

	for _, name := range names {
		s := sites[name]

		if s.URL == "" {
			errs = append(errs, fmt.Errorf("site.%s.url: must not be empty", name))
			continue
		}

		if err := validateHTTPURL(s.URL); err != nil {
			errs = append(errs, fmt.Errorf("site.%s.url: %w", name, err))
		}
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q", raw)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%q must use http or https", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}

	return nil
}
