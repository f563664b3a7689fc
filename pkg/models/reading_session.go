package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReadingSession is an append-only log row written when a session closes.
type ReadingSession struct {
	bun.BaseModel `bun:"table:reading_sessions,alias:rs"`

	ID         int       `bun:",pk,autoincrement" json:"id"`
	BookID     int       `bun:",notnull" json:"book_id"`
	StartedAt  time.Time `bun:",notnull" json:"started_at"`
	EndedAt    time.Time `bun:",notnull" json:"ended_at"`
	DurationMs int64     `bun:",notnull" json:"duration_ms"`
}
