package session

import (
	"context"

	"github.com/shishobooks/lectern/pkg/bookmarks"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/chapters"
	"github.com/shishobooks/lectern/pkg/database"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/uptrace/bun"
)

// Store is everything a session reads from or writes to the record store.
type Store interface {
	RetrieveBook(ctx context.Context, bookID int) (*models.Book, error)
	UpdateProgress(ctx context.Context, bookID int, pos models.Position) error
	UpdateStructureInfo(ctx context.Context, bookID int, md document.Metadata, totalChapters int) error
	ReplaceChapters(ctx context.Context, bookID int, root string, toc []*document.ChapterRef) error
	LogSession(ctx context.Context, rs *models.ReadingSession) error
	ListNotes(ctx context.Context, bookID int) ([]*models.Note, error)
}

// DBStore is the Store backed by the application database. Writes are
// retried while SQLite reports the database as busy.
type DBStore struct {
	books      *books.Service
	chapters   *chapters.Service
	bookmarks  *bookmarks.Service
	maxRetries int
}

func NewDBStore(db *bun.DB, maxRetries int) *DBStore {
	return &DBStore{
		books:      books.NewService(db),
		chapters:   chapters.NewService(db),
		bookmarks:  bookmarks.NewService(db),
		maxRetries: maxRetries,
	}
}

func (s *DBStore) RetrieveBook(ctx context.Context, bookID int) (*models.Book, error) {
	return s.books.RetrieveBook(ctx, books.RetrieveBookOptions{ID: &bookID})
}

func (s *DBStore) UpdateProgress(ctx context.Context, bookID int, pos models.Position) error {
	return database.RetryBusy(ctx, s.maxRetries, func() error {
		return s.books.UpdateProgress(ctx, bookID, pos)
	})
}

func (s *DBStore) UpdateStructureInfo(ctx context.Context, bookID int, md document.Metadata, totalChapters int) error {
	return database.RetryBusy(ctx, s.maxRetries, func() error {
		return s.books.UpdateStructureInfo(ctx, bookID, md, totalChapters)
	})
}

func (s *DBStore) ReplaceChapters(ctx context.Context, bookID int, root string, toc []*document.ChapterRef) error {
	return database.RetryBusy(ctx, s.maxRetries, func() error {
		return s.chapters.ReplaceChapters(ctx, bookID, root, toc)
	})
}

func (s *DBStore) LogSession(ctx context.Context, rs *models.ReadingSession) error {
	return database.RetryBusy(ctx, s.maxRetries, func() error {
		return s.books.LogSession(ctx, rs)
	})
}

func (s *DBStore) ListNotes(ctx context.Context, bookID int) ([]*models.Note, error) {
	return s.bookmarks.ListNotes(ctx, bookID)
}
