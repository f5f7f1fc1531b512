package sharepoint

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

// contextTokenProps are the claims the user-delegated flow needs.
var contextTokenProps = hydrate.Props(
	"audience", "aud",
	"refresh_token", "refreshtoken",
	"app_context_sender", "appctxsender",
	"app_context", "appctx",
)

// appContextProps are read from the JSON payload carried in the appctx claim.
var appContextProps = hydrate.Props(
	"security_token_service_uri", "SecurityTokenServiceUri",
)

// ContextToken is the decoded form of the signed token SharePoint posts to
// an add-in page (SPAppToken).
type ContextToken struct {
	hydrate.Record

	Audience         string
	RefreshToken     string
	AppContextSender string // "{principal id}@{realm}"
	TokenServiceURI  string // from appctx.SecurityTokenServiceUri
}

// ParseContextToken decodes a context token WITHOUT verifying its
// signature. SharePoint signs context tokens with the add-in's shared
// secret, but the claims are trusted as presented here; the refresh token
// they carry is only usable together with that secret, which the token
// endpoint checks.
func ParseContextToken(raw string) (*ContextToken, error) {
	parser := jwt.NewParser(jwt.WithJSONNumber())

	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrDecode, token.Claims)
	}

	ct := &ContextToken{Record: hydrate.NewRecord(contextTokenProps)}
	if err := hydrate.Hydrate(&ct.Record, map[string]any(claims), contextTokenProps, nil, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := ct.coerce(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return ct, nil
}

func (ct *ContextToken) coerce() error {
	var err error

	if ct.Audience, err = audienceClaim(ct.Record.Get("audience")); err != nil {
		return fmt.Errorf("aud claim: %w", err)
	}

	if ct.RefreshToken, err = stringField(&ct.Record, "refresh_token"); err != nil {
		return err
	}

	if ct.AppContextSender, err = stringField(&ct.Record, "app_context_sender"); err != nil {
		return err
	}

	appctx, err := stringField(&ct.Record, "app_context")
	if err != nil {
		return err
	}

	doc, err := hydrate.Decode([]byte(appctx))
	if err != nil {
		return fmt.Errorf("appctx claim: %w", err)
	}

	app := hydrate.NewRecord(appContextProps)
	if err := hydrate.Hydrate(&app, doc, appContextProps, nil, false); err != nil {
		return fmt.Errorf("appctx claim: %w", err)
	}

	if ct.TokenServiceURI, err = stringField(&app, "security_token_service_uri"); err != nil {
		return fmt.Errorf("appctx claim: %w", err)
	}

	if _, err := parseHTTPURL(ct.TokenServiceURI); err != nil {
		return fmt.Errorf("appctx claim: SecurityTokenServiceUri: %w", err)
	}

	return nil
}

// Resource derives the token resource identifier for hostname by splicing
// it into the app context sender: "{id}@{realm}" becomes
// "{id}/{hostname}@{realm}".
func (ct *ContextToken) Resource(hostname string) (string, error) {
	id, realm, ok := strings.Cut(ct.AppContextSender, "@")
	if !ok || id == "" || realm == "" {
		return "", fmt.Errorf("%w: appctxsender %q is not of the form id@realm", ErrDecode, ct.AppContextSender)
	}

	return id + "/" + hostname + "@" + realm, nil
}

// audienceClaim accepts aud as a string or a single-element array.
func audienceClaim(v any, _ bool) (string, error) {
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return "", fmt.Errorf("expected one audience, got %d", len(list))
		}

		v = list[0]
	}

	s, err := hydrate.String(v)
	if err != nil {
		return "", err
	}

	if s == "" {
		return "", fmt.Errorf("empty audience")
	}

	return s, nil
}

// stringField reads a declared field as a non-empty string.
func stringField(rec *hydrate.Record, field string) (string, error) {
	v, _ := rec.Get(field)

	s, err := hydrate.String(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}

	if s == "" {
		return "", fmt.Errorf("%s: empty", field)
	}

	return s, nil
}
