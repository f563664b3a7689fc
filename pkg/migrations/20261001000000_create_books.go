package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				source_path TEXT NOT NULL,
				format TEXT NOT NULL,
				progress_percent REAL NOT NULL DEFAULT 0 CHECK (progress_percent >= 0 AND progress_percent <= 100),
				chapter_ordinal INTEGER NOT NULL DEFAULT 0,
				chapter_fraction REAL NOT NULL DEFAULT 0 CHECK (chapter_fraction >= 0 AND chapter_fraction <= 1),
				location_token TEXT,
				total_chapters INTEGER NOT NULL DEFAULT 0,
				last_read_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_source_path ON books(source_path)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE chapters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
				parent_id INTEGER REFERENCES chapters(id) ON DELETE CASCADE,
				sort_order INTEGER NOT NULL,
				label TEXT NOT NULL,
				href TEXT NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_chapters_book_id ON chapters(book_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// sort_order is unique within siblings
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_chapters_book_sort ON chapters(book_id, parent_id, sort_order)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS chapters")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS books")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
