package sharepoint

import (
	"context"
	"fmt"
	"net/http"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

const webPath = "/_api/web"

var webProps = hydrate.Props(
	"id", "d.Id",
	"title", "d.Title",
	"url", "d.Url",
	"server_relative_url", "d.ServerRelativeUrl",
)

// Web is the site's root web as returned by /_api/web.
type Web struct {
	hydrate.Record

	ID                string
	Title             string
	URL               string
	ServerRelativeURL string
}

// GetWeb fetches the site's web. extra names additional response fields,
// kept in the Web's extra bag; every mapped path must be present.
func (c *Client) GetWeb(ctx context.Context, extra hydrate.PropertyMap) (*Web, error) {
	doc, err := c.Do(ctx, http.MethodGet, webPath, nil)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: get web: %w", err)
	}

	w := &Web{Record: hydrate.NewRecord(webProps)}
	if err := hydrate.Hydrate(&w.Record, doc, webProps, extra, false); err != nil {
		return nil, fmt.Errorf("%w: web response: %w", ErrProtocol, err)
	}

	w.refresh()

	return w, nil
}

// Update re-hydrates w from a partial document, such as the properties
// just sent in a MERGE that returned no body. Absent fields are kept.
func (w *Web) Update(doc hydrate.Document, extra hydrate.PropertyMap) error {
	if err := hydrate.Hydrate(&w.Record, doc, webProps, extra, true); err != nil {
		return err
	}

	w.refresh()

	return nil
}

// refresh copies raw record values into the typed fields. Values that are
// not strings leave the field as it was.
func (w *Web) refresh() {
	assign := func(field string, dst *string) {
		v, ok := w.Record.Get(field)
		if !ok {
			return
		}

		if s, err := hydrate.String(v); err == nil {
			*dst = s
		}
	}

	assign("id", &w.ID)
	assign("title", &w.Title)
	assign("url", &w.URL)
	assign("server_relative_url", &w.ServerRelativeURL)
}
