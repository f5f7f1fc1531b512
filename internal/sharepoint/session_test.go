package sharepoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves a token endpoint at /token and the site REST API under
// /sites/dev/_api. It only accepts REST calls bearing wantToken.
type fakeSite struct {
	srv         *httptest.Server
	tokenCalls  atomic.Int32
	digestCalls atomic.Int32
	tokenExpiry time.Time
	wantToken   string

	// release, when non-nil, blocks the token handler until closed.
	release chan struct{}
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()

	fs := &fakeSite{
		tokenExpiry: time.Now().Add(time.Hour),
		wantToken:   "T",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		fs.tokenCalls.Add(1)

		if fs.release != nil {
			<-fs.release
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenBody(t, fs.wantToken, fs.tokenExpiry)))
	})
	mux.HandleFunc("POST /sites/dev/_api/contextinfo", func(w http.ResponseWriter, r *http.Request) {
		fs.digestCalls.Add(1)

		if r.Header.Get("Authorization") != "Bearer "+fs.wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"-2147024891, System.UnauthorizedAccessException","message":{"lang":"en-US","value":"Access denied."}}}`))

			return
		}

		assert.Equal(t, acceptVerbose, r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":{"GetContextWebInformation":{
			"__metadata":{"type":"SP.ContextWebInformation"},
			"FormDigestTimeoutSeconds":1800,
			"FormDigestValue":"0xDEADBEEF,14 Oct 2026 10:00:00 -0000",
			"LibraryVersion":"16.0.0.0",
			"SiteFullUrl":"https://contoso.sharepoint.com/sites/dev"}}}`))
	})
	mux.HandleFunc("GET /sites/dev/_api/web", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+fs.wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("request-id", "req-1")
		_, _ = w.Write([]byte(`{"d":{
			"__metadata":{"type":"SP.Web"},
			"Id":"web-guid",
			"Title":"Dev Site",
			"Url":"https://contoso.sharepoint.com/sites/dev",
			"ServerRelativeUrl":"/sites/dev",
			"Language":1033}}`))
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)

	return fs
}

func (fs *fakeSite) siteContext() SiteContext {
	return SiteContext{
		URL:      fs.srv.URL + "/sites/dev",
		Secret:   testSecret,
		ClientID: "client@realm",
		Resource: "res",
		ACSURL:   fs.srv.URL + "/token",
	}
}

func newTestSession(t *testing.T, fs *fakeSite) *Session {
	t.Helper()

	return NewSession(fs.siteContext(), fs.srv.Client(), discardLogger())
}

func TestSession_AbsentToValid(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	_, err := s.AccessToken()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	created, err := s.CreateAccessTokenFromPolicy(context.Background())
	require.NoError(t, err)

	got, err := s.AccessToken()
	require.NoError(t, err)
	assert.Same(t, created, got)
	assert.Equal(t, "T", got.Token)
}

func TestSession_SetExpiredLeavesAbsent(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	err := s.SetAccessToken(NewAccessToken("old", time.Now().Add(-time.Minute).Unix()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredCredential)

	_, err = s.AccessToken()
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSession_SetExpiredKeepsPrevious(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	valid := NewAccessToken("valid", time.Now().Add(time.Hour).Unix())
	require.NoError(t, s.SetAccessToken(valid))

	err := s.SetAccessToken(NewAccessToken("stale", time.Now().Add(-time.Minute).Unix()))
	assert.ErrorIs(t, err, ErrExpiredCredential)

	got, err := s.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "valid", got.Token)
}

func TestSession_SetNil(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	assert.ErrorIs(t, s.SetAccessToken(nil), ErrInvalidCredential)
	assert.ErrorIs(t, s.SetFormDigest(nil), ErrInvalidCredential)
}

func TestSession_ValidToExpired(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	require.NoError(t, s.SetAccessToken(NewAccessToken("T", now.Add(10*time.Second).Unix())))

	_, err := s.AccessToken()
	require.NoError(t, err)

	now = now.Add(10 * time.Second)

	_, err = s.AccessToken()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredCredential)

	// Reads never clear the slot: it stays Expired, not Absent.
	_, err = s.AccessToken()
	assert.ErrorIs(t, err, ErrExpiredCredential)
}

func TestSession_CreateFailureKeepsState(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	valid := NewAccessToken("valid", time.Now().Add(time.Hour).Unix())
	require.NoError(t, s.SetAccessToken(valid))

	_, err := s.CreateAccessTokenFromPolicy(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	got, err := s.AccessToken()
	require.NoError(t, err)
	assert.Same(t, valid, got)
}

func TestSession_CreateRejectsExpiredResult(t *testing.T) {
	fs := newFakeSite(t)
	fs.tokenExpiry = time.Now().Add(-time.Hour)

	s := newTestSession(t, fs)

	_, err := s.CreateAccessTokenFromPolicy(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredCredential)

	_, err = s.AccessToken()
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSession_CreateFromUser(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	raw := makeContextToken(t, fs.srv.URL+"/token", nil)

	tok, err := s.CreateAccessTokenFromUser(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "T", tok.Token)

	got, err := s.AccessToken()
	require.NoError(t, err)
	assert.Same(t, tok, got)
}

func TestSession_ConcurrentAcquisitionIsSingleFlight(t *testing.T) {
	fs := newFakeSite(t)
	fs.release = make(chan struct{})
	s := newTestSession(t, fs)

	const callers = 8

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		tokens  [callers]*AccessToken
		errs    [callers]error
	)

	started.Add(callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			started.Done()
			tokens[i], errs[i] = s.CreateAccessTokenFromPolicy(context.Background())
		}()
	}

	started.Wait()

	// Wait until the first request reaches the server, give the other
	// callers a moment to join the flight, then let it finish.
	require.Eventually(t, func() bool { return fs.tokenCalls.Load() == 1 }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fs.release)
	wg.Wait()

	assert.Equal(t, int32(1), fs.tokenCalls.Load())

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, tokens[0], tokens[i])
	}
}

func TestSession_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	fs := newFakeSite(t)
	fs.release = make(chan struct{})
	s := newTestSession(t, fs)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)

	go func() {
		_, err := s.CreateAccessTokenFromPolicy(firstCtx)
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return fs.tokenCalls.Load() == 1 }, 5*time.Second, time.Millisecond)

	secondCtx, cancelSecond := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSecond()

	type result struct {
		tok *AccessToken
		err error
	}

	second := make(chan result, 1)

	go func() {
		tok, err := s.CreateAccessTokenFromPolicy(secondCtx)
		second <- result{tok, err}
	}()

	// Give the second caller a moment to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(fs.release)

	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, "T", r.tok.Token)
	assert.NoError(t, secondCtx.Err())
	assert.Equal(t, int32(1), fs.tokenCalls.Load())

	got, err := s.AccessToken()
	require.NoError(t, err)
	assert.Same(t, r.tok, got)
}

func TestSession_WaitingCallerCancelReturnsPromptly(t *testing.T) {
	fs := newFakeSite(t)
	fs.release = make(chan struct{})
	s := newTestSession(t, fs)

	firstErr := make(chan error, 1)

	go func() {
		_, err := s.CreateAccessTokenFromPolicy(context.Background())
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return fs.tokenCalls.Load() == 1 }, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.CreateAccessTokenFromPolicy(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)

	close(fs.release)
	require.NoError(t, <-firstErr)
	assert.Equal(t, int32(1), fs.tokenCalls.Load())
}

func TestSession_CreateWithCanceledContext(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateAccessTokenFromPolicy(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), fs.tokenCalls.Load())
}

func TestSession_FormDigestLifecycle(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	now := time.Now()
	s.nowFunc = func() time.Time { return now }

	_, err := s.FormDigest()
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// No token yet: digest creation fails closed without a request.
	_, err = s.CreateFormDigest(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int32(0), fs.digestCalls.Load())

	_, err = s.CreateAccessTokenFromPolicy(context.Background())
	require.NoError(t, err)

	d, err := s.CreateFormDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xDEADBEEF,14 Oct 2026 10:00:00 -0000", d.Value)
	assert.True(t, d.ExpiresAt.Equal(now.Add(1800*time.Second)))

	got, err := s.FormDigest()
	require.NoError(t, err)
	assert.Same(t, d, got)

	// The digest expires on its own schedule; the token is still valid.
	now = now.Add(1800 * time.Second)

	_, err = s.FormDigest()
	assert.ErrorIs(t, err, ErrExpiredCredential)

	_, err = s.AccessToken()
	assert.NoError(t, err)
}

func TestSession_FormDigestExpiredToken(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	now := time.Now()
	s.nowFunc = func() time.Time { return now }

	require.NoError(t, s.SetAccessToken(NewAccessToken("T", now.Add(time.Minute).Unix())))
	now = now.Add(2 * time.Minute)

	_, err := s.CreateFormDigest(context.Background())
	assert.ErrorIs(t, err, ErrExpiredCredential)
	assert.Equal(t, int32(0), fs.digestCalls.Load())
}

func TestSession_FormDigestRejectedToken(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	require.NoError(t, s.SetAccessToken(NewAccessToken("wrong", time.Now().Add(time.Hour).Unix())))

	_, err := s.CreateFormDigest(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Access denied.", apiErr.Message)

	_, err = s.FormDigest()
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSession_SetFormDigest(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	err := s.SetFormDigest(NewFormDigest("v", time.Now().Add(-time.Hour), time.Minute))
	assert.ErrorIs(t, err, ErrExpiredCredential)

	fresh := NewFormDigest("v", time.Now(), time.Hour)
	require.NoError(t, s.SetFormDigest(fresh))

	got, err := s.FormDigest()
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestSession_TokenSource(t *testing.T) {
	s := NewSession(SiteContext{}, nil, discardLogger())

	_, err := s.Token()
	assert.ErrorIs(t, err, ErrInvalidCredential)

	require.NoError(t, s.SetAccessToken(NewAccessToken("T", time.Now().Add(time.Hour).Unix())))

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "T", tok.AccessToken)
	assert.True(t, tok.Valid())
}

func TestSession_HTTPClientFailsClosed(t *testing.T) {
	fs := newFakeSite(t)
	s := newTestSession(t, fs)

	_, err := s.Client().GetWeb(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
