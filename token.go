package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"
	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/tokenfile"
	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/tokenstore"
)

// tokenOutput is the JSON schema for `token show --json`.
type tokenOutput struct {
	Site      string    `json:"site"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
	Token     string    `json:"access_token,omitempty"`
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect, export, and import the stored access token",
	}

	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenShowCmd())
	cmd.AddCommand(newTokenExportCmd())
	cmd.AddCommand(newTokenImportCmd())

	return cmd
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every site with a stored token",
		RunE:  runTokenList,
	}
}

func runTokenList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger(os.Stderr)

	store, err := tokenstore.Open(ctx, resolvedCfg.TokenStorePath(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sites, err := store.Sites(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	out := make([]tokenOutput, 0, len(sites))

	for _, site := range sites {
		tok, err := store.Load(ctx, site)
		if err != nil {
			return err
		}

		if tok == nil {
			continue
		}

		out = append(out, tokenOutput{Site: site, ExpiresAt: tok.ExpiresAt, Valid: !tok.ExpiredAt(now)})
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	if len(out) == 0 {
		statusf("No stored tokens.\n")
		return nil
	}

	for _, entry := range out {
		fmt.Fprintf(w, "%-20s %s (%s)\n", entry.Site, entry.ExpiresAt.Local().Format(time.RFC3339), formatRemaining(entry.ExpiresAt, now))
	}

	return nil
}

func newTokenShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored token's expiry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokenShow(cmd, reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "include the access token itself")

	return cmd
}

func runTokenShow(cmd *cobra.Command, reveal bool) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	tok, err := ss.storedToken(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	out := tokenOutput{Site: ss.name, ExpiresAt: tok.ExpiresAt, Valid: !tok.ExpiredAt(now)}

	if reveal {
		out.Token = tok.Token
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Site:      %s\n", out.Site)
	fmt.Fprintf(w, "Expires:   %s (%s)\n", out.ExpiresAt.Local().Format(time.RFC3339), formatRemaining(tok.ExpiresAt, now))

	if reveal {
		fmt.Fprintf(w, "Token:     %s\n", out.Token)
	}

	return nil
}

func newTokenExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export PATH",
		Short: "Write the stored token to a token file",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenExport,
	}
}

func runTokenExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	tok, err := ss.storedToken(ctx)
	if err != nil {
		return err
	}

	if err := sharepoint.SaveToken(args[0], tok, ss.logger); err != nil {
		return err
	}

	statusf("Exported token for site %s to %s.\n", ss.name, args[0])

	return nil
}

func newTokenImportCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Store the token held in a token file",
		Long:  "Store the token held in a token file. Expired tokens are rejected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenImport(cmd, args[0], remove)
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "delete the token file after a successful import")

	return cmd
}

func runTokenImport(cmd *cobra.Command, path string, remove bool) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	tok, err := sharepoint.LoadToken(path)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	// The session applies the expiry check.
	if err := ss.session.SetAccessToken(tok); err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	if err := ss.store.Save(ctx, ss.name, tok); err != nil {
		return err
	}

	if remove {
		if err := tokenfile.Remove(path); err != nil {
			return err
		}

		ss.logger.Debug("removed imported token file", slog.String("path", path))
	}

	statusf("Imported token for site %s (expires in %s).\n", ss.name, formatRemaining(tok.ExpiresAt, time.Now()))

	return nil
}
