package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"
)

// Acquisition flows, as reported in login output.
const (
	flowAppOnly = "app-only"
	flowUser    = "user"
)

type loginOutput struct {
	Site      string    `json:"site"`
	Flow      string    `json:"flow"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newLoginCmd() *cobra.Command {
	var contextToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Acquire an access token for the site and store it",
		Long: `Acquire an access token and store it in the token store.

Without --context-token the app-only (client credentials) flow is used and
the site needs secret, client_id, and resource. With --context-token the
context token SharePoint posted to the add-in is exchanged for a token on
behalf of the user; pass "-" to read it from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, contextToken)
		},
	}

	cmd.Flags().StringVar(&contextToken, "context-token", "", `context token for the user flow ("-" reads stdin)`)

	return cmd
}

func runLogin(cmd *cobra.Command, contextToken string) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	if contextToken == "-" {
		data, readErr := io.ReadAll(cmd.InOrStdin())
		if readErr != nil {
			return fmt.Errorf("reading context token from stdin: %w", readErr)
		}

		contextToken = strings.TrimSpace(string(data))
		if contextToken == "" {
			return fmt.Errorf("reading context token from stdin: empty input")
		}
	}

	ss.logger.Info("login started", slog.String("site", ss.name))

	flow := flowAppOnly

	var tok *sharepoint.AccessToken

	if cmd.Flags().Changed("context-token") {
		flow = flowUser
		tok, err = ss.session.CreateAccessTokenFromUser(ctx, contextToken)
	} else {
		tok, err = ss.session.CreateAccessTokenFromPolicy(ctx)
	}

	if err != nil {
		return err
	}

	if err := ss.store.Save(ctx, ss.name, tok); err != nil {
		return err
	}

	ss.logger.Info("login successful", slog.String("site", ss.name), slog.String("flow", flow))

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), loginOutput{Site: ss.name, Flow: flow, ExpiresAt: tok.ExpiresAt})
	}

	statusf("Logged in to site %s (%s token, expires in %s).\n",
		ss.name, flow, formatRemaining(tok.ExpiresAt, time.Now()))

	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the site's stored access token",
		RunE:  runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	if err := ss.store.Delete(ctx, ss.name); err != nil {
		return err
	}

	ss.logger.Info("logout successful", slog.String("site", ss.name))
	statusf("Logged out of site %s.\n", ss.name)

	return nil
}
