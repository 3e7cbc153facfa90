package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	apperrors "github.com/Ganeshg1313/askandsay-server/pkg/errors"
)

// hashToken produces the stable digest under which a revoked token is
// stored. Raw tokens never touch the database.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RevokeToken blacklists a token until expiresAt. Revoking an already
// revoked token refreshes its expiry.
func (s *Store) RevokeToken(token string, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if token == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "token is required")
	}
	_, err := s.db.Exec(`
        INSERT INTO revoked_tokens (token_hash, revoked_at, expires_at)
        VALUES (?, ?, ?)
        ON CONFLICT(token_hash) DO UPDATE SET expires_at = excluded.expires_at
    `, hashToken(token), time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "revoke token")
	}
	return nil
}

// IsTokenRevoked reports whether the token is on the blacklist and its
// revocation has not yet expired.
func (s *Store) IsTokenRevoked(token string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrStoreClosed
	}
	row := s.db.QueryRow(`
        SELECT expires_at FROM revoked_tokens WHERE token_hash = ?
    `, hashToken(token))
	var expiresAt time.Time
	if err := row.Scan(&expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "check token revocation")
	}
	return time.Now().UTC().Before(expiresAt), nil
}

// CleanupExpiredRevocations deletes blacklist entries whose expiry has
// passed. Returns the number of rows removed.
func (s *Store) CleanupExpiredRevocations() (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}
	res, err := s.db.Exec(`DELETE FROM revoked_tokens WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "cleanup revoked tokens")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
