// Package bookmarks stores bookmarks and notes. Both are keyed by book and
// always carry a location token rather than a bare chapter ordinal.
package bookmarks

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/uptrace/bun"
)

const DefaultNoteColor = "yellow"

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func checkToken(token string) error {
	if _, err := location.Parse(token); err != nil {
		return errcodes.ValidationError("location_token is not a valid location")
	}
	return nil
}

func (svc *Service) CreateBookmark(ctx context.Context, bm *models.Bookmark) error {
	if err := checkToken(bm.LocationToken); err != nil {
		return err
	}
	if bm.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		bm.ID = id.String()
	}
	if bm.CreatedAt.IsZero() {
		bm.CreatedAt = time.Now()
	}

	_, err := svc.db.NewInsert().Model(bm).Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListBookmarks(ctx context.Context, bookID int) ([]*models.Bookmark, error) {
	bms := []*models.Bookmark{}
	err := svc.db.NewSelect().
		Model(&bms).
		Where("bm.book_id = ?", bookID).
		Order("bm.created_at ASC").
		Scan(ctx)
	return bms, errors.WithStack(err)
}

func (svc *Service) DeleteBookmark(ctx context.Context, bookID int, id string) error {
	res, err := svc.db.NewDelete().
		Model((*models.Bookmark)(nil)).
		Where("id = ?", id).
		Where("book_id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Bookmark")
	}
	return nil
}

func (svc *Service) CreateNote(ctx context.Context, n *models.Note) error {
	if err := checkToken(n.LocationToken); err != nil {
		return err
	}
	if n.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		n.ID = id.String()
	}
	if n.Color == "" {
		n.Color = DefaultNoteColor
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt

	_, err := svc.db.NewInsert().Model(n).Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveNote(ctx context.Context, bookID int, id string) (*models.Note, error) {
	n := &models.Note{}
	err := svc.db.NewSelect().
		Model(n).
		Where("n.id = ?", id).
		Where("n.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Note")
		}
		return nil, errors.WithStack(err)
	}
	return n, nil
}

func (svc *Service) ListNotes(ctx context.Context, bookID int) ([]*models.Note, error) {
	notes := []*models.Note{}
	err := svc.db.NewSelect().
		Model(&notes).
		Where("n.book_id = ?", bookID).
		Order("n.created_at ASC").
		Scan(ctx)
	return notes, errors.WithStack(err)
}

// UpdateNote rewrites the body and color of a note.
func (svc *Service) UpdateNote(ctx context.Context, n *models.Note) error {
	n.UpdatedAt = time.Now()
	res, err := svc.db.NewUpdate().
		Model(n).
		Column("body", "color", "updated_at").
		Where("id = ?", n.ID).
		Where("book_id = ?", n.BookID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return errcodes.NotFound("Note")
	}
	return nil
}

func (svc *Service) DeleteNote(ctx context.Context, bookID int, id string) error {
	res, err := svc.db.NewDelete().
		Model((*models.Note)(nil)).
		Where("id = ?", id).
		Where("book_id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Note")
	}
	return nil
}
