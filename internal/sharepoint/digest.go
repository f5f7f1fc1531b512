package sharepoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

// contextInfoPath is the site-relative endpoint that issues form digests.
const contextInfoPath = "/_api/contextinfo"

var formDigestProps = hydrate.Props(
	"value", "d.GetContextWebInformation.FormDigestValue",
	"timeout", "d.GetContextWebInformation.FormDigestTimeoutSeconds",
)

// FormDigest is the request digest SharePoint requires on state-changing
// REST calls (X-RequestDigest header). It has its own lifetime, unrelated
// to the access token's, and no refresh mechanism.
type FormDigest struct {
	hydrate.Record

	Value     string
	ExpiresAt time.Time
}

// NewFormDigest builds a digest that expires timeout after issuedAt.
func NewFormDigest(value string, issuedAt time.Time, timeout time.Duration) *FormDigest {
	return &FormDigest{
		Record:    hydrate.NewRecord(formDigestProps),
		Value:     value,
		ExpiresAt: issuedAt.Add(timeout).UTC(),
	}
}

// ExpiredAt reports whether the digest is expired at now (now >= expiry).
func (d *FormDigest) ExpiredAt(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// HasExpired reports whether the digest is expired at the current time.
func (d *FormDigest) HasExpired() bool {
	return d.ExpiredAt(time.Now())
}

// String never includes the digest value.
func (d *FormDigest) String() string {
	return fmt.Sprintf("FormDigest(expires %s)", d.ExpiresAt.Format(time.RFC3339))
}

// FormDigest requests a new digest. The expiry is fixed here, as now plus
// the timeout the server reports, and never re-derived.
func (c *Client) FormDigest(ctx context.Context, now time.Time) (*FormDigest, error) {
	doc, err := c.Do(ctx, http.MethodPost, contextInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: form digest request: %w", err)
	}

	d := &FormDigest{Record: hydrate.NewRecord(formDigestProps)}
	if err := hydrate.Hydrate(&d.Record, doc, formDigestProps, nil, false); err != nil {
		return nil, fmt.Errorf("%w: form digest response: %w", ErrProtocol, err)
	}

	if err := d.coerce(now); err != nil {
		return nil, fmt.Errorf("%w: form digest response: %w", ErrProtocol, err)
	}

	c.logger.Info("form digest acquired", slog.Time("expiry", d.ExpiresAt))

	return d, nil
}

func (d *FormDigest) coerce(issuedAt time.Time) error {
	value, err := stringField(&d.Record, "value")
	if err != nil {
		return err
	}

	raw, _ := d.Record.Get("timeout")

	seconds, err := hydrate.Int64(raw)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}

	if seconds <= 0 {
		return fmt.Errorf("timeout: %d is not positive", seconds)
	}

	d.Value = value
	d.ExpiresAt = issuedAt.Add(time.Duration(seconds) * time.Second).UTC()

	return nil
}
