package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Bookmark always stores a location token, never a bare ordinal.
type Bookmark struct {
	bun.BaseModel `bun:"table:bookmarks,alias:bm"`

	ID            string    `bun:",pk" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	BookID        int       `bun:",notnull" json:"book_id"`
	LocationToken string    `bun:",notnull" json:"location_token"`
	Preview       string    `bun:",notnull" json:"preview"`
}

type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID            string    `bun:",pk" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	BookID        int       `bun:",notnull" json:"book_id"`
	LocationToken string    `bun:",notnull" json:"location_token"`
	// Preview is the selected text the note is attached to.
	Preview string `bun:",notnull" json:"preview"`
	Body    string `bun:",notnull" json:"body"`
	Color   string `bun:",notnull" json:"color"`
}
