package sharepoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// OAuth grant types sent to the token endpoints.
const (
	grantRefreshToken      = "refresh_token"
	grantClientCredentials = "client_credentials"
)

// CreateFromUser runs the user-delegated flow: it decodes the context token
// SharePoint posted to the add-in, then trades the refresh token it carries
// for an access token at the token service named inside the token.
//
// Configuration problems (empty secret or context token, bad site URL) are
// reported before any request is made.
func CreateFromUser(
	ctx context.Context,
	site SiteContext,
	httpClient *http.Client,
	contextToken string,
	logger *slog.Logger,
) (*AccessToken, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if site.Secret == "" {
		return nil, missingField("secret")
	}

	if contextToken == "" {
		return nil, missingField("context_token")
	}

	ct, err := ParseContextToken(contextToken)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: user token: %w", err)
	}

	hostname, err := site.Hostname()
	if err != nil {
		return nil, err
	}

	resource, err := ct.Resource(hostname)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: user token: %w", err)
	}

	logger.Info("exchanging context token for access token",
		slog.String("token_service", ct.TokenServiceURI),
		slog.String("resource", resource),
	)

	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"client_id":     {ct.Audience},
		"client_secret": {site.Secret},
		"refresh_token": {ct.RefreshToken},
		"resource":      {resource},
	}

	tok, err := requestToken(ctx, httpClient, ct.TokenServiceURI, form, logger)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: user token exchange: %w", err)
	}

	return tok, nil
}

// CreateFromPolicy runs the app-only flow (client credentials against ACS).
// Each required field is checked in turn, before any request is made:
// secret, acs, client_id, resource.
func CreateFromPolicy(
	ctx context.Context,
	site SiteContext,
	httpClient *http.Client,
	logger *slog.Logger,
) (*AccessToken, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if site.Secret == "" {
		return nil, missingField("secret")
	}

	acs, err := site.acsURL()
	if err != nil {
		return nil, err
	}

	if site.ClientID == "" {
		return nil, missingField("client_id")
	}

	if site.Resource == "" {
		return nil, missingField("resource")
	}

	logger.Info("requesting app-only access token",
		slog.String("token_service", acs),
		slog.String("resource", site.Resource),
	)

	form := url.Values{
		"grant_type":    {grantClientCredentials},
		"client_id":     {site.ClientID},
		"client_secret": {site.Secret},
		"resource":      {site.Resource},
	}

	tok, err := requestToken(ctx, httpClient, acs, form, logger)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: app-only token request: %w", err)
	}

	return tok, nil
}

// requestToken posts form to endpoint and hydrates the response.
func requestToken(
	ctx context.Context,
	httpClient *http.Client,
	endpoint string,
	form url.Values,
	logger *slog.Logger,
) (*AccessToken, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	doc, err := postForm(ctx, httpClient, endpoint, form, logger)
	if err != nil {
		return nil, err
	}

	tok, err := accessTokenFromDocument(doc, nil)
	if err != nil {
		return nil, err
	}

	logger.Info("access token acquired", slog.Time("expiry", tok.ExpiresAt))

	return tok, nil
}
