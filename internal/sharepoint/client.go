package sharepoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

const (
	userAgent = "sharepoint-oauth-app-client/0.1"

	// acceptVerbose asks SharePoint for the verbose OData envelope ({"d": ...}),
	// which is what the property maps in this package are written against.
	acceptVerbose = "application/json;odata=verbose"

	contentTypeForm = "application/x-www-form-urlencoded"

	// maxErrorBody bounds how much of an error response is kept in APIError.
	maxErrorBody = 4096
)

// Client issues REST calls against one SharePoint site. Authentication is
// the job of the supplied *http.Client: Session.HTTPClient returns one whose
// transport attaches the session's bearer token.
type Client struct {
	site       SiteContext
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a site REST client. A nil httpClient uses
// http.DefaultClient, a nil logger slog.Default().
func NewClient(site SiteContext, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		site:       site,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Do sends a request to a site-relative REST path and decodes the JSON
// response. An empty response body yields an empty Document.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (hydrate.Document, error) {
	endpoint, err := c.site.APIURL(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: creating request: %w", err)
	}

	req.Header.Set("Accept", acceptVerbose)

	if body != nil {
		req.Header.Set("Content-Type", acceptVerbose)
	}

	return sendJSON(c.httpClient, req, c.logger)
}

// postForm sends an unauthenticated application/x-www-form-urlencoded POST
// to a token endpoint and decodes the JSON answer.
func postForm(
	ctx context.Context,
	httpClient *http.Client,
	endpoint string,
	form url.Values,
	logger *slog.Logger,
) (hydrate.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("sharepoint: creating request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", "application/json")

	return sendJSON(httpClient, req, logger)
}

// sendJSON executes req once (no retries) and classifies the outcome:
// transport failures wrap ErrTransport, non-2xx statuses and OAuth error
// payloads become *APIError, and successful bodies are decoded.
func sendJSON(httpClient *http.Client, req *http.Request, logger *slog.Logger) (hydrate.Document, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("client-request-id", uuid.NewString())

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s %s canceled: %w", ErrTransport, req.Method, req.URL.Path, ctxErr)
		}

		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}

	reqID := responseRequestID(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("request_id", reqID),
		)

		return nil, newAPIError(resp.StatusCode, reqID, data)
	}

	doc, err := hydrate.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrProtocol, req.Method, req.URL.Path, err)
	}

	// Some token endpoints answer 200 with an OAuth error object.
	if code, ok := stringAt(doc, "error"); ok && code != "" {
		return nil, newAPIError(resp.StatusCode, reqID, data)
	}

	logger.Debug("request succeeded",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
	)

	return doc, nil
}

func responseRequestID(resp *http.Response) string {
	if id := resp.Header.Get("request-id"); id != "" {
		return id
	}

	return resp.Header.Get("SPRequestGuid")
}

// errorProps covers both OAuth token endpoint errors
// ({"error": "invalid_grant", "error_description": "..."}) and SharePoint
// OData errors ({"error": {"code": "...", "message": {"value": "..."}}}).
var errorProps = hydrate.Props(
	"oauth_code", "error",
	"oauth_description", "error_description",
	"odata_code", "error.code",
	"odata_message", "error.message",
	"odata_message_value", "error.message.value",
)

// newAPIError builds an APIError from an error response body, falling back
// to the raw (truncated) body when it carries no recognizable error payload.
func newAPIError(status int, reqID string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		RequestID:  reqID,
		Err:        classifyStatus(status),
	}

	rec := hydrate.NewRecord(errorProps)
	if doc, err := hydrate.Decode(body); err == nil {
		// Lenient: any subset of the fields may be present.
		_ = hydrate.Hydrate(&rec, doc, errorProps, nil, true)
	}

	apiErr.Code = firstString(&rec, "oauth_code", "odata_code")
	apiErr.Message = firstString(&rec, "oauth_description", "odata_message_value", "odata_message")

	if apiErr.Code == "" && apiErr.Message == "" {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}

		apiErr.Message = msg
	}

	return apiErr
}

// firstString returns the first field holding a string value.
func firstString(rec *hydrate.Record, fields ...string) string {
	for _, f := range fields {
		v, ok := rec.Get(f)
		if !ok {
			continue
		}

		if s, isStr := v.(string); isStr && s != "" {
			return s
		}
	}

	return ""
}

// stringAt resolves path in doc and reports whether it holds a string.
func stringAt(doc hydrate.Document, path string) (string, bool) {
	v, ok := hydrate.Resolve(doc, path)
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}
