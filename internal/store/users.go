package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/itemsvc/internal/model"
)

const userColumns = `id, username, password_hash, role, created_at`

// CreateUser creates a new user.
func CreateUser(ctx context.Context, db *sqlx.DB, username, passwordHash, role string) (*model.User, error) {
	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?) RETURNING id`),
		username, passwordHash, role,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, or nil if there is none.
func GetUser(ctx context.Context, db *sqlx.DB, id int64) (*model.User, error) {
	u := &model.User{}
	err := db.GetContext(ctx, u, db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username, or nil if there is none.
func GetUserByUsername(ctx context.Context, db *sqlx.DB, username string) (*model.User, error) {
	u := &model.User{}
	err := db.GetContext(ctx, u, db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of accounts.
func CountUsers(ctx context.Context, db *sqlx.DB) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sqlx.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}
