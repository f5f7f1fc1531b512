package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"
	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/tokenstore"
)

// siteSession bundles what every site command needs: the token store and a
// credential session for the resolved site.
type siteSession struct {
	name    string
	store   *tokenstore.Store
	session *sharepoint.Session
	logger  *slog.Logger
}

func openSiteSession(ctx context.Context) (*siteSession, error) {
	logger := buildLogger(os.Stderr)

	store, err := tokenstore.Open(ctx, resolvedCfg.TokenStorePath(), logger)
	if err != nil {
		return nil, err
	}

	return &siteSession{
		name:    resolvedCfg.SiteName,
		store:   store,
		session: sharepoint.NewSession(resolvedCfg.Site.SiteContext(), newHTTPClient(), logger),
		logger:  logger,
	}, nil
}

func (ss *siteSession) Close() {
	if err := ss.store.Close(); err != nil {
		ss.logger.Warn("closing token store", slog.String("error", err.Error()))
	}
}

// storedToken returns the site's stored token, expired or not.
func (ss *siteSession) storedToken(ctx context.Context) (*sharepoint.AccessToken, error) {
	tok, err := ss.store.Load(ctx, ss.name)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, fmt.Errorf("not logged in to site %q, run 'sharepoint-oauth login' first: %w",
			ss.name, sharepoint.ErrInvalidCredential)
	}

	return tok, nil
}

// restore loads the stored token into the session. An expired token is
// reported, never used.
func (ss *siteSession) restore(ctx context.Context) error {
	tok, err := ss.storedToken(ctx)
	if err != nil {
		return err
	}

	if err := ss.session.SetAccessToken(tok); err != nil {
		if errors.Is(err, sharepoint.ErrExpiredCredential) {
			return fmt.Errorf("stored token for site %q has expired, run 'sharepoint-oauth login' again: %w",
				ss.name, err)
		}

		return err
	}

	return nil
}
