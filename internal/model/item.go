package model

import "time"

// Item is the single persisted resource: a named record with an optional description.
type Item struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Field limits for items. They must match the max= rules in the ItemInput
// validate tags.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
)

// ItemInput is the client-writable part of an item, used for both create and update.
type ItemInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// Image is an item's stored picture.
type Image struct {
	Data []byte
	MIME string
}
