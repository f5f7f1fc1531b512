package sharepoint

import (
	"errors"
	"net/url"
	"strings"
)

// DefaultACSURL is the Azure Access Control token endpoint used by the
// app-only flow when the site does not name one.
const DefaultACSURL = "https://accounts.accesscontrol.windows.net/tokens/OAuth/2"

// SiteContext is the per-site configuration consumed by the acquisition
// protocols. Fields are checked when a protocol needs them, not up front,
// so a site configured only for the user flow need not carry a client id.
type SiteContext struct {
	URL      string // site URL, e.g. https://contoso.sharepoint.com/sites/dev
	Secret   string // add-in shared secret
	ClientID string // app-only flow
	Resource string // app-only flow, e.g. 00000003-0000-0ff1-ce00-000000000000/contoso.sharepoint.com@realm
	ACSURL   string // token issuance endpoint; DefaultACSURL when empty
}

// Hostname returns the host part of the site URL.
func (s SiteContext) Hostname() (string, error) {
	u, err := s.parseURL()
	if err != nil {
		return "", err
	}

	return u.Hostname(), nil
}

// BasePath returns the site's server-relative path without a trailing slash.
func (s SiteContext) BasePath() (string, error) {
	u, err := s.parseURL()
	if err != nil {
		return "", err
	}

	return strings.TrimRight(u.EscapedPath(), "/"), nil
}

// APIURL joins the site URL with a site-relative REST path such as
// "/_api/contextinfo".
func (s SiteContext) APIURL(path string) (string, error) {
	u, err := s.parseURL()
	if err != nil {
		return "", err
	}

	base := u.Scheme + "://" + u.Host + strings.TrimRight(u.EscapedPath(), "/")

	return base + "/" + strings.TrimLeft(path, "/"), nil
}

func (s SiteContext) parseURL() (*url.URL, error) {
	if s.URL == "" {
		return nil, missingField("url")
	}

	u, err := parseHTTPURL(s.URL)
	if err != nil {
		return nil, &ConfigError{Field: "url", Reason: err.Error()}
	}

	return u, nil
}

// acsURL returns the validated token issuance endpoint.
func (s SiteContext) acsURL() (string, error) {
	raw := s.ACSURL
	if raw == "" {
		raw = DefaultACSURL
	}

	if _, err := parseHTTPURL(raw); err != nil {
		return "", &ConfigError{Field: "acs", Reason: err.Error()}
	}

	return raw, nil
}

var (
	errMalformedURL = errors.New("malformed URL")
	errURLScheme    = errors.New("scheme must be http or https")
	errURLHost      = errors.New("missing host")
)

// parseHTTPURL accepts only absolute http or https URLs with a host.
func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errMalformedURL
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, errURLScheme
	}

	if u.Host == "" {
		return nil, errURLHost
	}

	return u, nil
}
