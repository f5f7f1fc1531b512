package sharepoint

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/hydrate"
)

func TestAccessTokenFromDocument(t *testing.T) {
	doc, err := hydrate.Decode([]byte(`{"access_token":"T","expires_on":"4070908800","token_type":"Bearer"}`))
	require.NoError(t, err)

	tok, err := accessTokenFromDocument(doc, hydrate.Props("token_type", "token_type"))
	require.NoError(t, err)

	assert.Equal(t, "T", tok.Token)
	assert.Equal(t, time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC), tok.ExpiresAt)

	typ, ok := tok.ExtraValue("token_type")
	require.True(t, ok)
	assert.Equal(t, "Bearer", typ)
}

func TestAccessTokenFromDocument_NumericEpoch(t *testing.T) {
	doc, err := hydrate.Decode([]byte(`{"access_token":"T","expires_on":4070908800}`))
	require.NoError(t, err)

	tok, err := accessTokenFromDocument(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4070908800), tok.ExpiresOn())
}

func TestAccessTokenFromDocument_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		missingField bool
	}{
		{"missing expires_on", `{"access_token":"T"}`, true},
		{"missing access_token", `{"expires_on":1}`, true},
		{"empty access_token", `{"access_token":"","expires_on":1}`, false},
		{"bad epoch", `{"access_token":"T","expires_on":"tomorrow"}`, false},
		{"object token", `{"access_token":{},"expires_on":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := hydrate.Decode([]byte(tt.body))
			require.NoError(t, err)

			_, err = accessTokenFromDocument(doc, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocol)

			if tt.missingField {
				assert.ErrorIs(t, err, hydrate.ErrMissingField)
			}
		})
	}
}

func TestAccessToken_Expiry(t *testing.T) {
	future := NewAccessToken("T", time.Now().Add(time.Hour).Unix())
	assert.False(t, future.HasExpired())

	past := NewAccessToken("T", time.Now().Add(-time.Hour).Unix())
	assert.True(t, past.HasExpired())
}

func TestAccessToken_ExpiredAtBoundary(t *testing.T) {
	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	tok := NewAccessToken("T", exp.Unix())

	assert.False(t, tok.ExpiredAt(exp.Add(-time.Second)))
	assert.True(t, tok.ExpiredAt(exp))
	assert.True(t, tok.ExpiredAt(exp.Add(time.Second)))
}

func TestAccessToken_JSONRoundTrip(t *testing.T) {
	original := NewAccessToken("token-value", 1893456000)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"token-value","expires_on":1893456000}`, string(data))

	var restored AccessToken
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, original.Token, restored.Token)
	assert.True(t, original.ExpiresAt.Equal(restored.ExpiresAt))
}

func TestAccessToken_UnmarshalRejectsEmpty(t *testing.T) {
	var tok AccessToken

	err := json.Unmarshal([]byte(`{"expires_on": 5}`), &tok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access_token")
}

func TestAccessToken_SerializationDropsExtra(t *testing.T) {
	doc, err := hydrate.Decode([]byte(`{"access_token":"T","expires_on":10,"refresh_token":"secret"}`))
	require.NoError(t, err)

	tok, err := accessTokenFromDocument(doc, hydrate.Props("refresh_token", "refresh_token"))
	require.NoError(t, err)

	data, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestAccessToken_OAuth2(t *testing.T) {
	tok := NewAccessToken("T", 1893456000)
	o := tok.OAuth2()

	assert.Equal(t, "T", o.AccessToken)
	assert.Equal(t, "Bearer", o.TokenType)
	assert.True(t, o.Expiry.Equal(tok.ExpiresAt))
}

func TestAccessToken_StringHidesToken(t *testing.T) {
	tok := NewAccessToken("super-secret", 1893456000)
	assert.NotContains(t, tok.String(), "super-secret")
}
