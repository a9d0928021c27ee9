package db

import (
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// NewPostgresTestDB connects to the PostgreSQL server named by DATABASE_URL and
// returns a handle confined to a fresh schema with the tables applied. The
// schema is dropped on cleanup. The test is skipped unless DATABASE_URL is a
// postgres:// URL.
func NewPostgresTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if !IsPostgres(dsn) {
		t.Skip("DATABASE_URL is not a PostgreSQL URL")
	}

	admin, err := Open(dsn)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	schema := fmt.Sprintf("itemsvc_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(`CREATE SCHEMA ` + schema); err != nil {
		admin.Close()
		t.Fatalf("creating schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`); err != nil {
			t.Logf("dropping schema %s: %v", schema, err)
		}
		admin.Close()
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parsing DATABASE_URL: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := Open(u.String())
	if err != nil {
		t.Fatalf("opening postgres schema %s: %v", schema, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("creating postgres schema: %v", err)
	}
	// Second run exercises the IF NOT EXISTS paths.
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("re-running postgres schema: %v", err)
	}
	return db
}
