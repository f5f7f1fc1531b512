package sharepoint

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "shared-secret"
	testAudience = "11111111-2222-3333-4444-555555555555/localhost@realm-guid"
	testSender   = "00000003-0000-0ff1-ce00-000000000000@realm-guid"
)

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// countingClient returns a client whose every request fails the test's
// expectations: it counts calls and answers with a transport error.
func countingClient() (*http.Client, *atomic.Int32) {
	var calls atomic.Int32

	c := &http.Client{Transport: roundTripFunc(func(_ *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("unexpected request")
	})}

	return c, &calls
}

// cannedClient answers every request with status and body, recording the
// last request it saw.
func cannedClient(status int, body string, last **http.Request) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if last != nil {
			*last = r
		}

		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
}

// tokenBody renders a token endpoint response expiring at exp.
func tokenBody(t *testing.T, token string, exp time.Time) string {
	t.Helper()

	data, err := json.Marshal(map[string]any{
		"token_type":   "Bearer",
		"access_token": token,
		// ACS sends epochs as strings.
		"expires_on": strconv.FormatInt(exp.Unix(), 10),
		"resource":   "res",
	})
	require.NoError(t, err)

	return string(data)
}

// makeContextToken signs a context token pointing at tokenService.
func makeContextToken(t *testing.T, tokenService string, overrides map[string]any) string {
	t.Helper()

	appctx, err := json.Marshal(map[string]string{
		"CacheKey":                "cache-key",
		"SecurityTokenServiceUri": tokenService,
	})
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"aud":                testAudience,
		"iss":                "00000001-0000-0000-c000-000000000000@realm-guid",
		"nbf":                time.Now().Add(-time.Minute).Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
		"appctxsender":       testSender,
		"appctx":             string(appctx),
		"refreshtoken":       "refresh-xyz",
		"isbrowserhostedapp": "true",
	}

	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}

		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return signed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
