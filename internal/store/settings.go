package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetClaimSecret retrieves the listing claim signing secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetClaimSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating claim secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('claim_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing claim_secret: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'claim_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying claim_secret: %w", err)
	}

	return secret, nil
}

// ClaimSecret returns the persisted claim secret of the database backend.
func (s *SQLiteStore) ClaimSecret(ctx context.Context) (string, error) {
	return GetClaimSecret(ctx, s.db)
}
