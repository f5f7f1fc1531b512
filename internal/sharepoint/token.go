package sharepoint

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

// accessTokenProps maps a token endpoint response onto an AccessToken.
var accessTokenProps = hydrate.Props(
	"access_token", "access_token",
	"expires_on", "expires_on",
)

// AccessToken is a bearer credential with a server-issued expiry.
// The embedded Record keeps any extra response fields a caller asked for
// (token_type, resource, not_before ...).
type AccessToken struct {
	hydrate.Record

	Token     string
	ExpiresAt time.Time
}

// NewAccessToken restores a token from its persisted form.
func NewAccessToken(token string, expiresOn int64) *AccessToken {
	return &AccessToken{
		Record:    hydrate.NewRecord(accessTokenProps),
		Token:     token,
		ExpiresAt: time.Unix(expiresOn, 0).UTC(),
	}
}

// accessTokenFromDocument hydrates a token endpoint response. extra names
// additional response fields to keep in the token's extra bag.
func accessTokenFromDocument(doc hydrate.Document, extra hydrate.PropertyMap) (*AccessToken, error) {
	tok := &AccessToken{Record: hydrate.NewRecord(accessTokenProps)}

	if err := hydrate.Hydrate(&tok.Record, doc, accessTokenProps, extra, false); err != nil {
		return nil, fmt.Errorf("%w: token response: %w", ErrProtocol, err)
	}

	if err := tok.coerce(); err != nil {
		return nil, fmt.Errorf("%w: token response: %w", ErrProtocol, err)
	}

	return tok, nil
}

// coerce is the post-hydration step: raw expires_on epoch to ExpiresAt.
func (t *AccessToken) coerce() error {
	raw, _ := t.Record.Get("access_token")

	s, err := hydrate.String(raw)
	if err != nil {
		return fmt.Errorf("access_token: %w", err)
	}

	if s == "" {
		return fmt.Errorf("access_token: empty")
	}

	rawExp, _ := t.Record.Get("expires_on")

	epoch, err := hydrate.Int64(rawExp)
	if err != nil {
		return fmt.Errorf("expires_on: %w", err)
	}

	t.Token = s
	t.ExpiresAt = time.Unix(epoch, 0).UTC()

	return nil
}

// ExpiresOn returns the expiry as a unix epoch.
func (t *AccessToken) ExpiresOn() int64 {
	return t.ExpiresAt.Unix()
}

// ExpiredAt reports whether the token is expired at now (now >= expiry).
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HasExpired reports whether the token is expired at the current time.
func (t *AccessToken) HasExpired() bool {
	return t.ExpiredAt(time.Now())
}

// OAuth2 converts the token for use with golang.org/x/oauth2 transports.
func (t *AccessToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.Token,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
}

// String never includes the token value.
func (t *AccessToken) String() string {
	return fmt.Sprintf("AccessToken(expires %s)", t.ExpiresAt.Format(time.RFC3339))
}

// serializedToken is the only persisted form of an AccessToken.
type serializedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresOn   int64  `json:"expires_on"`
}

// MarshalJSON writes the two-field persisted form.
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(serializedToken{AccessToken: t.Token, ExpiresOn: t.ExpiresOn()})
}

// UnmarshalJSON restores a token written by MarshalJSON.
func (t *AccessToken) UnmarshalJSON(data []byte) error {
	var st serializedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("sharepoint: decoding access token: %w", err)
	}

	if st.AccessToken == "" {
		return fmt.Errorf("sharepoint: decoding access token: missing access_token")
	}

	*t = *NewAccessToken(st.AccessToken, st.ExpiresOn)

	return nil
}
