package sharepoint

import (
	"log/slog"

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/tokenfile"
)

// SaveToken persists tok to path in its two-field serialized form.
func SaveToken(path string, tok *AccessToken, logger *slog.Logger) error {
	if tok == nil {
		return ErrInvalidCredential
	}

	if err := tokenfile.Save(path, tokenfile.File{AccessToken: tok.Token, ExpiresOn: tok.ExpiresOn()}); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("saved access token",
			slog.String("path", path),
			slog.Time("expiry", tok.ExpiresAt),
		)
	}

	return nil
}

// LoadToken restores a token saved by SaveToken. It returns
// ErrInvalidCredential if no token file exists at path. The token is
// returned even when expired; Session.SetAccessToken applies the check.
func LoadToken(path string) (*AccessToken, error) {
	tf, err := tokenfile.Load(path)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, ErrInvalidCredential
	}

	return NewAccessToken(tf.AccessToken, tf.ExpiresOn), nil
}
