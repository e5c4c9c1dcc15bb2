package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// TokenTTL is how long an API token stays valid after login.
const TokenTTL = 24 * time.Hour

// CreateToken issues a bearer token for userID. Only its SHA-256 is stored.
func (s *Store) CreateToken(ctx context.Context, userID int64) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sha256sum([]byte(token)), userID, now, now.Add(TokenTTL),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate returns the active user owning an unexpired token, or nil.
func (s *Store) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.display_name, u.password_hash, u.role, u.active, u.created_at
		 FROM api_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token_hash = ? AND t.expires_at > ? AND u.active`,
		sha256sum([]byte(token)), time.Now(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// RevokeToken deletes a token. Unknown tokens are ignored.
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE token_hash = ?`, sha256sum([]byte(token)))
	return err
}

// PurgeExpiredTokens removes expired tokens and reports how many were deleted.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
