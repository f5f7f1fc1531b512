// Package sharepoint implements SharePoint add-in authentication: access
// token acquisition through the user-delegated (context token) and app-only
// (client credentials) flows, form digest acquisition, and a per-site
// Session that holds both credentials and refuses to hand out expired ones.
package sharepoint

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Use errors.Is(err, sharepoint.ErrExpiredCredential) to check.
var (
	ErrConfiguration     = errors.New("sharepoint: invalid configuration")
	ErrDecode            = errors.New("sharepoint: cannot decode context token")
	ErrTransport         = errors.New("sharepoint: transport failure")
	ErrProtocol          = errors.New("sharepoint: protocol error")
	ErrInvalidCredential = errors.New("sharepoint: credential not acquired")
	ErrExpiredCredential = errors.New("sharepoint: credential expired")
)

// Sentinel errors for HTTP status code classification of APIError.
var (
	ErrBadRequest   = errors.New("sharepoint: bad request")
	ErrUnauthorized = errors.New("sharepoint: unauthorized")
	ErrForbidden    = errors.New("sharepoint: forbidden")
	ErrNotFound     = errors.New("sharepoint: not found")
	ErrThrottled    = errors.New("sharepoint: throttled")
	ErrServerError  = errors.New("sharepoint: server error")
)

// ConfigError names the site configuration field that is missing or invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sharepoint: config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func missingField(field string) *ConfigError {
	return &ConfigError{Field: field, Reason: "required"}
}

// APIError is returned when a token, digest, or REST endpoint answers with a
// non-2xx status or an OAuth error payload. It matches ErrProtocol and, when
// the status maps to one, a status sentinel such as ErrUnauthorized.
type APIError struct {
	StatusCode int
	RequestID  string
	Code       string // OAuth "error" or OData error code
	Message    string // error_description or OData message, raw body as fallback
	Err        error  // status sentinel, may be nil
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}

	if e.RequestID != "" {
		return fmt.Sprintf("sharepoint: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, msg)
	}

	return fmt.Sprintf("sharepoint: HTTP %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == ErrProtocol
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
