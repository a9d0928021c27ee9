package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/itemsvc/internal/db"
	"github.com/erazemk/itemsvc/internal/model"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

const itemColumns = `id, name, description, created_at, updated_at`

// ListParams selects a page of items.
type ListParams struct {
	Limit  int
	Offset int
	Search string
}

// ItemStore is the items repository.
type ItemStore struct {
	DB *sqlx.DB

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewItemStore returns an ItemStore using the wall clock.
func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{DB: db, Now: time.Now}
}

// now returns the store clock in UTC, truncated to the microsecond precision
// both SQLite text timestamps and PostgreSQL timestamptz round-trip exactly.
func (s *ItemStore) now() time.Time {
	clock := s.Now
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Microsecond)
}

// Create inserts a new item and returns it with its assigned id and timestamps.
func (s *ItemStore) Create(ctx context.Context, in model.ItemInput) (*model.Item, error) {
	now := s.now()
	var id int64
	err := s.DB.QueryRowxContext(ctx, s.DB.Rebind(
		`INSERT INTO items (name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`),
		in.Name, in.Description, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := s.DB.GetContext(ctx, item, s.DB.Rebind(
		`SELECT `+itemColumns+` FROM items WHERE id = ?`), id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return normalize(item), nil
}

// List returns a page of items ordered by id. A non-empty Search keeps only
// items whose name or description contains it, ignoring case.
func (s *ItemStore) List(ctx context.Context, p ListParams) ([]model.Item, error) {
	where, args := searchClause(s.DB.DriverName(), p.Search)
	args = append(args, p.Limit, p.Offset)

	items := []model.Item{}
	err := s.DB.SelectContext(ctx, &items, s.DB.Rebind(
		`SELECT `+itemColumns+` FROM items`+where+` ORDER BY id LIMIT ? OFFSET ?`),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	for i := range items {
		normalize(&items[i])
	}
	return items, nil
}

// Count returns how many items match search (all items when search is empty).
func (s *ItemStore) Count(ctx context.Context, search string) (int, error) {
	where, args := searchClause(s.DB.DriverName(), search)
	var n int
	if err := s.DB.GetContext(ctx, &n, s.DB.Rebind(`SELECT COUNT(*) FROM items`+where), args...); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// Update replaces an item's name and description. created_at is preserved and
// updated_at is moved forward, never before created_at.
func (s *ItemStore) Update(ctx context.Context, id int64, in model.ItemInput) (*model.Item, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.GetContext(ctx, &createdAt, tx.Rebind(`SELECT created_at FROM items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	now := s.now()
	if now.Before(createdAt) {
		now = createdAt.UTC()
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`UPDATE items SET name = ?, description = ?, updated_at = ? WHERE id = ?`),
		in.Name, in.Description, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete permanently removes an item. Deleting a missing item returns ErrNotFound.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	result, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImage stores an item's image and bumps updated_at.
func (s *ItemStore) SetImage(ctx context.Context, id int64, img model.Image) error {
	result, err := s.DB.ExecContext(ctx, s.DB.Rebind(
		`UPDATE items SET image = ?, image_mime = ?, updated_at = ? WHERE id = ?`),
		img.Data, img.MIME, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetImage returns an item's image. ErrNotFound covers both a missing item
// and an item without an image.
func (s *ItemStore) GetImage(ctx context.Context, id int64) (*model.Image, error) {
	var row struct {
		Data []byte         `db:"image"`
		MIME sql.NullString `db:"image_mime"`
	}
	err := s.DB.GetContext(ctx, &row, s.DB.Rebind(`SELECT image, image_mime FROM items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item image: %w", err)
	}
	if len(row.Data) == 0 {
		return nil, ErrNotFound
	}
	return &model.Image{Data: row.Data, MIME: row.MIME.String}, nil
}

// searchClause builds the WHERE clause for a case-insensitive substring match.
// Both sides are folded with Unicode rules. LIKE wildcards in the term match
// literally.
func searchClause(driverName, search string) (string, []any) {
	if search == "" {
		return "", nil
	}
	lower := db.LowerFunc(driverName)
	pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
	return ` WHERE ` + lower + `(name) LIKE ? ESCAPE '\' OR ` + lower + `(COALESCE(description, '')) LIKE ? ESCAPE '\'`,
		[]any{pattern, pattern}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func normalize(item *model.Item) *model.Item {
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item
}
