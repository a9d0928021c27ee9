package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Insert-if-absent followed by a re-read keeps concurrent first starts consistent.
func GetJWTSecret(ctx context.Context, db *sqlx.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx, db.Rebind(
		`INSERT INTO settings (key, value) VALUES ('jwt_secret', ?) ON CONFLICT (key) DO NOTHING`),
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	if err := db.GetContext(ctx, &secret, `SELECT value FROM settings WHERE key = 'jwt_secret'`); err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	return secret, nil
}
