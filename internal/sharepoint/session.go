package sharepoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Single-flight keys, one per acquisition kind.
const (
	flightPolicy = "token:policy"
	flightUser   = "token:user:"
	flightDigest = "digest"
)

// defaultFlightTimeout bounds a shared acquisition when the HTTP client has
// no timeout of its own.
const defaultFlightTimeout = time.Minute

// Session holds the credentials for one SharePoint site: an access token
// and a form digest, each independently Absent, Valid, or Expired.
//
// Accessors never return an expired credential and never renew one; the
// caller re-runs the matching Create method on ErrExpiredCredential.
// Concurrent Create calls of the same kind share a single round trip.
type Session struct {
	site       SiteContext
	httpClient *http.Client
	logger     *slog.Logger

	// nowFunc returns the current time. Tests override it to move the clock.
	nowFunc func() time.Time

	mu     sync.RWMutex
	token  *AccessToken
	digest *FormDigest

	flight singleflight.Group
}

// NewSession creates a session with no credentials. httpClient performs
// every request (token endpoints unauthenticated, REST calls through
// HTTPClient with the bearer token added); nil uses http.DefaultClient.
func NewSession(site SiteContext, httpClient *http.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Session{
		site:       site,
		httpClient: httpClient,
		logger:     logger,
		nowFunc:    time.Now,
	}
}

// Site returns the session's site configuration.
func (s *Session) Site() SiteContext {
	return s.site
}

// AccessToken returns the current token. It fails with ErrInvalidCredential
// if none was acquired and ErrExpiredCredential once it has expired.
func (s *Session) AccessToken() (*AccessToken, error) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()

	if tok == nil {
		return nil, fmt.Errorf("%w: no access token", ErrInvalidCredential)
	}

	if tok.ExpiredAt(s.nowFunc()) {
		return nil, fmt.Errorf("%w: access token expired at %s", ErrExpiredCredential, tok.ExpiresAt.Format(time.RFC3339))
	}

	return tok, nil
}

// SetAccessToken installs an externally obtained or restored token. An
// already expired token is rejected and the current token kept.
func (s *Session) SetAccessToken(tok *AccessToken) error {
	if tok == nil || tok.Token == "" {
		return fmt.Errorf("%w: empty access token", ErrInvalidCredential)
	}

	if tok.ExpiredAt(s.nowFunc()) {
		return fmt.Errorf("%w: refusing access token that expired at %s",
			ErrExpiredCredential, tok.ExpiresAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	s.logger.Debug("access token set", slog.Time("expiry", tok.ExpiresAt))

	return nil
}

// CreateAccessTokenFromPolicy acquires a token with the app-only flow and
// stores it.
func (s *Session) CreateAccessTokenFromPolicy(ctx context.Context) (*AccessToken, error) {
	return s.acquireToken(ctx, flightPolicy, func(ctx context.Context) (*AccessToken, error) {
		return CreateFromPolicy(ctx, s.site, s.httpClient, s.logger)
	})
}

// CreateAccessTokenFromUser acquires a token with the user-delegated flow
// from a context token and stores it.
func (s *Session) CreateAccessTokenFromUser(ctx context.Context, contextToken string) (*AccessToken, error) {
	return s.acquireToken(ctx, flightUser+contextToken, func(ctx context.Context) (*AccessToken, error) {
		return CreateFromUser(ctx, s.site, s.httpClient, contextToken, s.logger)
	})
}

func (s *Session) acquireToken(
	ctx context.Context,
	key string,
	acquire func(context.Context) (*AccessToken, error),
) (*AccessToken, error) {
	v, shared, err := s.shareFlight(ctx, key, func(ctx context.Context) (any, error) {
		tok, err := acquire(ctx)
		if err != nil {
			return nil, err
		}

		if err := s.SetAccessToken(tok); err != nil {
			return nil, err
		}

		return tok, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		s.logger.Debug("access token acquisition shared with concurrent caller")
	}

	return v.(*AccessToken), nil
}

// shareFlight runs fn once for all concurrent callers of key. The shared
// request runs on a context detached from every caller and bounded by
// flightTimeout, so one caller canceling never fails the others; each
// caller still returns as soon as its own ctx is done.
func (s *Session) shareFlight(
	ctx context.Context,
	key string,
	fn func(context.Context) (any, error),
) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %s canceled: %w", ErrTransport, key, err)
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout())
		defer cancel()

		return fn(fctx)
	})

	select {
	case r := <-ch:
		return r.Val, r.Shared, r.Err
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%w: %s canceled: %w", ErrTransport, key, ctx.Err())
	}
}

// flightTimeout bounds a shared acquisition: the HTTP client's timeout when
// it has one, defaultFlightTimeout otherwise.
func (s *Session) flightTimeout() time.Duration {
	if s.httpClient.Timeout > 0 {
		return s.httpClient.Timeout
	}

	return defaultFlightTimeout
}

// FormDigest returns the current digest with the same Absent/Expired rules
// as AccessToken.
func (s *Session) FormDigest() (*FormDigest, error) {
	s.mu.RLock()
	d := s.digest
	s.mu.RUnlock()

	if d == nil {
		return nil, fmt.Errorf("%w: no form digest", ErrInvalidCredential)
	}

	if d.ExpiredAt(s.nowFunc()) {
		return nil, fmt.Errorf("%w: form digest expired at %s", ErrExpiredCredential, d.ExpiresAt.Format(time.RFC3339))
	}

	return d, nil
}

// SetFormDigest installs a digest. An already expired digest is rejected
// and the current digest kept.
func (s *Session) SetFormDigest(d *FormDigest) error {
	if d == nil || d.Value == "" {
		return fmt.Errorf("%w: empty form digest", ErrInvalidCredential)
	}

	if d.ExpiredAt(s.nowFunc()) {
		return fmt.Errorf("%w: refusing form digest that expired at %s",
			ErrExpiredCredential, d.ExpiresAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.digest = d
	s.mu.Unlock()

	return nil
}

// CreateFormDigest requests a new digest using the current access token
// and stores it. It fails with the access token's error if there is no
// valid token.
func (s *Session) CreateFormDigest(ctx context.Context) (*FormDigest, error) {
	if _, err := s.AccessToken(); err != nil {
		return nil, fmt.Errorf("sharepoint: form digest: %w", err)
	}

	v, _, err := s.shareFlight(ctx, flightDigest, func(ctx context.Context) (any, error) {
		d, err := s.Client().FormDigest(ctx, s.nowFunc())
		if err != nil {
			return nil, err
		}

		if err := s.SetFormDigest(d); err != nil {
			return nil, err
		}

		return d, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*FormDigest), nil
}

// Token implements oauth2.TokenSource. Like AccessToken it fails closed.
func (s *Session) Token() (*oauth2.Token, error) {
	tok, err := s.AccessToken()
	if err != nil {
		return nil, err
	}

	return tok.OAuth2(), nil
}

// HTTPClient returns a client that adds the session's current access token
// to every request. Requests fail once the token expires.
func (s *Session) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: s,
			Base:   s.httpClient.Transport,
		},
		Timeout: s.httpClient.Timeout,
	}
}

// Client returns a REST client for the session's site, authenticated with
// the session's access token.
func (s *Session) Client() *Client {
	return NewClient(s.site, s.HTTPClient(), s.logger)
}
