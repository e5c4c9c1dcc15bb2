package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

const userColumns = `id, username, display_name, password_hash, role, active, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. Usernames are unique ignoring case.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	if !u.Role.Valid() {
		return 0, fmt.Errorf("invalid role %q", u.Role)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.PasswordHash, u.Role, u.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

// GetUserByUsername returns a user by case-insensitive username, or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUserByID returns a user by ID, or nil.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag and returns the new value.
// Deactivating a user also revokes their tokens.
func (s *Store) ToggleUserActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET active = NOT active WHERE id = ? RETURNING active`, id,
	).Scan(&active)
	if err != nil {
		return false, err
	}
	if !active {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE user_id = ?`, id); err != nil {
			return false, err
		}
	}
	slog.Info("toggled user", "id", id, "active", active)
	return active, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
