// Package chapters persists a book's table of contents so it can be listed
// without unpacking and parsing the book again.
package chapters

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// ListChapters retrieves all chapters for a book, building nested structure.
func (svc *Service) ListChapters(ctx context.Context, bookID int) ([]*models.Chapter, error) {
	var chapters []*models.Chapter
	err := svc.db.NewSelect().
		Model(&chapters).
		Where("book_id = ?", bookID).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return buildChapterTree(chapters), nil
}

// HasChapters reports whether a TOC was stored for the book.
func (svc *Service) HasChapters(ctx context.Context, bookID int) (bool, error) {
	exists, err := svc.db.NewSelect().
		Model((*models.Chapter)(nil)).
		Where("book_id = ?", bookID).
		Exists(ctx)
	return exists, errors.WithStack(err)
}

// ReplaceChapters deletes all existing chapters for a book and stores toc.
// Hrefs under root are stored relative to it so the rows survive the
// extraction directory moving. An empty toc leaves the stored one alone.
func (svc *Service) ReplaceChapters(ctx context.Context, bookID int, root string, toc []*document.ChapterRef) error {
	if len(toc) == 0 {
		return nil
	}
	return svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Delete existing chapters
		_, err := tx.NewDelete().
			Model((*models.Chapter)(nil)).
			Where("book_id = ?", bookID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return insertChapters(ctx, tx, bookID, nil, root, toc)
	})
}

// DeleteChaptersForBook deletes all chapters for a book.
func (svc *Service) DeleteChaptersForBook(ctx context.Context, bookID int) error {
	_, err := svc.db.NewDelete().
		Model((*models.Chapter)(nil)).
		Where("book_id = ?", bookID).
		Exec(ctx)
	return errors.WithStack(err)
}

// insertChapters recursively inserts chapters with their children.
func insertChapters(ctx context.Context, tx bun.Tx, bookID int, parentID *int, root string, refs []*document.ChapterRef) error {
	now := time.Now()
	for i, ref := range refs {
		model := &models.Chapter{
			CreatedAt: now,
			BookID:    bookID,
			ParentID:  parentID,
			SortOrder: i,
			Label:     ref.Label,
			Href:      relativeHref(root, ref.Href),
		}

		_, err := tx.NewInsert().Model(model).Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(ref.Children) > 0 {
			if err := insertChapters(ctx, tx, bookID, &model.ID, root, ref.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func relativeHref(root, href string) string {
	if root == "" || !filepath.IsAbs(href) {
		return href
	}
	rel, err := filepath.Rel(root, href)
	if err != nil || strings.HasPrefix(rel, "..") {
		return href
	}
	return filepath.ToSlash(rel)
}

// buildChapterTree converts a flat list of chapters into a nested tree.
func buildChapterTree(chapters []*models.Chapter) []*models.Chapter {
	// Build lookup map
	byID := make(map[int]*models.Chapter)
	for _, ch := range chapters {
		ch.Children = []*models.Chapter{} // Initialize empty slice
		byID[ch.ID] = ch
	}

	// Build tree
	roots := make([]*models.Chapter, 0)
	for _, ch := range chapters {
		if ch.ParentID == nil {
			roots = append(roots, ch)
		} else if parent, ok := byID[*ch.ParentID]; ok {
			parent.Children = append(parent.Children, ch)
		}
	}

	return roots
}
