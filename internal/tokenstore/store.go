// Package tokenstore keeps serialized access tokens for many sites in one
// SQLite database, keyed by site name. Rows hold the token string and its
// expiry epoch only.
package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/IdeaCore/sharepoint-oauth-app-client/internal/sharepoint"
)

const (
	sqlSaveToken = `INSERT INTO access_tokens (site, access_token, expires_on)
		VALUES (?, ?, ?)
		ON CONFLICT(site) DO UPDATE SET
			access_token = excluded.access_token,
			expires_on = excluded.expires_on`
	sqlLoadToken   = `SELECT access_token, expires_on FROM access_tokens WHERE site = ?`
	sqlDeleteToken = `DELETE FROM access_tokens WHERE site = ?`
	sqlListSites   = `SELECT site FROM access_tokens ORDER BY site`
)

// dirPerms is used when creating the database directory.
const dirPerms = 0o700

// Store is a SQLite-backed token store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), dirPerms); err != nil {
			return nil, fmt.Errorf("tokenstore: creating directory for %s: %w", dbPath, err)
		}

		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: opening database %s: %w", dbPath, err)
	}

	// One connection: writes are serialized, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("token store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores tok for site, replacing any previous token.
func (s *Store) Save(ctx context.Context, site string, tok *sharepoint.AccessToken) error {
	if tok == nil {
		return fmt.Errorf("tokenstore: save %s: %w", site, sharepoint.ErrInvalidCredential)
	}

	if _, err := s.db.ExecContext(ctx, sqlSaveToken, site, tok.Token, tok.ExpiresOn()); err != nil {
		return fmt.Errorf("tokenstore: saving token for %s: %w", site, err)
	}

	s.logger.Debug("token stored",
		slog.String("site", site),
		slog.Time("expiry", tok.ExpiresAt),
	)

	return nil
}

// Load returns the stored token for site, or (nil, nil) if there is none.
// Expired tokens are returned as stored.
func (s *Store) Load(ctx context.Context, site string) (*sharepoint.AccessToken, error) {
	var (
		token     string
		expiresOn int64
	)

	err := s.db.QueryRowContext(ctx, sqlLoadToken, site).Scan(&token, &expiresOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenstore: loading token for %s: %w", site, err)
	}

	return sharepoint.NewAccessToken(token, expiresOn), nil
}

// Delete removes the token for site. Deleting a missing token is not an error.
func (s *Store) Delete(ctx context.Context, site string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteToken, site); err != nil {
		return fmt.Errorf("tokenstore: deleting token for %s: %w", site, err)
	}

	return nil
}

// Sites lists the sites that have a stored token, sorted.
func (s *Store) Sites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqlListSites)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: listing sites: %w", err)
	}
	defer rows.Close()

	var sites []string

	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("tokenstore: scanning site: %w", err)
		}

		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tokenstore: iterating sites: %w", err)
	}

	return sites, nil
}
