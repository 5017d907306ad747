package store

import (
	"context"
	"database/sql"
	"time"
)

// RevokeToken marks a token id as revoked until it would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (id, expires_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		tokenID, expiresAt.UTC(),
	)
	return err
}

// IsTokenRevoked reports whether the token id was revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE id = ?`, tokenID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpiredRevocations removes revocations of tokens that have expired.
func (s *Store) CleanupExpiredRevocations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
