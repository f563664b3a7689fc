package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book is the durable reading record for one source file.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID         int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Title      string    `bun:",notnull" json:"title"`
	Author     string    `bun:",notnull" json:"author"`
	SourcePath string    `bun:",notnull" json:"source_path"`
	Format     string    `bun:",notnull" json:"format"`

	ProgressPercent float64 `bun:",notnull" json:"progress_percent"`
	ChapterOrdinal  int     `bun:",notnull" json:"chapter_ordinal"`
	ChapterFraction float64 `bun:",notnull" json:"chapter_fraction"`
	// LocationToken is the surface's precise position, if it reported one.
	LocationToken *string    `json:"location_token"`
	TotalChapters int        `bun:",notnull" json:"total_chapters"`
	LastReadAt    *time.Time `json:"last_read_at"`

	Chapters []*Chapter `bun:"rel:has-many,join:id=book_id" json:"-"`
}

// Position is the subset of a Book that a reading session writes back.
type Position struct {
	ChapterOrdinal  int
	ChapterFraction float64
	ProgressPercent float64
	LocationToken   *string
	LastReadAt      time.Time
}
