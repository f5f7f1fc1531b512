package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"
)

// digestOutput is the JSON schema for `digest --json`.
type digestOutput struct {
	Site      string    `json:"site"`
	ExpiresAt time.Time `json:"expires_at"`
	Value     string    `json:"value,omitempty"`
}

func newDigestCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Request a form digest with the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDigest(cmd, reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "include the digest value")

	return cmd
}

func runDigest(cmd *cobra.Command, reveal bool) error {
	ctx := cmd.Context()

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	if err := ss.restore(ctx); err != nil {
		return err
	}

	d, err := ss.session.CreateFormDigest(ctx)
	if err != nil {
		return err
	}

	out := digestOutput{Site: ss.name, ExpiresAt: d.ExpiresAt}
	if reveal {
		out.Value = d.Value
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Site:      %s\n", out.Site)
	fmt.Fprintf(w, "Expires:   %s (%s)\n", d.ExpiresAt.Local().Format(time.RFC3339), formatRemaining(d.ExpiresAt, time.Now()))

	if reveal {
		fmt.Fprintf(w, "Digest:    %s\n", out.Value)
	}

	return nil
}

func newWebCmd() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Show the site's root web",
		Long: `Show the site's root web.

--field name=path adds a response property to the output, addressed by its
dotted path in the verbose OData response, e.g. --field language=d.Language.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWeb(cmd, fields)
		},
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "extra property as name=path (repeatable)")

	return cmd
}

// parseFieldFlags turns name=path pairs into a property map.
func parseFieldFlags(fields []string) (hydrate.PropertyMap, error) {
	var pm hydrate.PropertyMap

	for _, f := range fields {
		name, path, ok := strings.Cut(f, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("--field %q: want name=path", f)
		}

		pm = append(pm, hydrate.Property{Field: name, Path: path})
	}

	return pm, nil
}

func runWeb(cmd *cobra.Command, fields []string) error {
	ctx := cmd.Context()

	extra, err := parseFieldFlags(fields)
	if err != nil {
		return err
	}

	ss, err := openSiteSession(ctx)
	if err != nil {
		return err
	}
	defer ss.Close()

	if err := ss.restore(ctx); err != nil {
		return err
	}

	web, err := ss.session.Client().GetWeb(ctx, extra)
	if err != nil {
		return err
	}

	out := map[string]any{
		"id":                  web.ID,
		"title":               web.Title,
		"url":                 web.URL,
		"server_relative_url": web.ServerRelativeURL,
	}

	for _, p := range extra {
		if v, ok := webFieldValue(web, p.Field); ok {
			out[p.Field] = v
		}
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Title:     %s\n", web.Title)
	fmt.Fprintf(w, "URL:       %s\n", web.URL)
	fmt.Fprintf(w, "ID:        %s\n", web.ID)

	names := make([]string, 0, len(extra))
	for _, p := range extra {
		names = append(names, p.Field)
	}

	sort.Strings(names)

	for _, name := range names {
		v, _ := webFieldValue(web, name)
		fmt.Fprintf(w, "%-10s %v\n", name+":", v)
	}

	return nil
}

// webFieldValue looks up a --field name. Names that match a declared web
// property are hydrated into the record itself rather than the extra bag.
func webFieldValue(web *sharepoint.Web, name string) (any, bool) {
	if web.Declares(name) {
		return web.Get(name)
	}

	return web.ExtraValue(name)
}
