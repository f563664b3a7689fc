package books

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID         *int
	SourcePath *string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
	Format *string

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// Register records the file at sourcePath as a book, sniffing its format.
// Registering the same path twice returns the existing record.
func (svc *Service) Register(ctx context.Context, sourcePath string) (*models.Book, bool, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, false, errcodes.ValidationError("path must point at an existing file")
	}

	existing, err := svc.RetrieveBook(ctx, RetrieveBookOptions{SourcePath: &abs})
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errcodes.NotFound("Book")) {
		return nil, false, err
	}

	format, err := unpack.Detect(abs)
	if err != nil {
		if errors.Is(err, unpack.ErrUnsupportedFormat) {
			return nil, false, errcodes.UnsupportedFormat(filepath.Ext(abs))
		}
		return nil, false, err
	}

	base := filepath.Base(abs)
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" {
		title = document.UnknownTitle
	}

	book := &models.Book{
		Title:      title,
		Author:     document.UnknownAuthor,
		SourcePath: abs,
		Format:     format,
	}
	if err := svc.CreateBook(ctx, book); err != nil {
		return nil, false, err
	}
	return book, true, nil
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.SourcePath != nil {
		q = q.Where("b.source_path = ?", *opts.SourcePath)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	// Most recently read first; never-read books last, oldest first.
	q := svc.db.
		NewSelect().
		Model(&books).
		OrderExpr("b.last_read_at IS NULL ASC").
		Order("b.last_read_at DESC", "b.created_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Format != nil {
		q = q.Where("b.format = ?", *opts.Format)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	book.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

// UpdateProgress writes a reading position. Values are clamped into their
// valid ranges, and last_read_at never moves backwards.
func (svc *Service) UpdateProgress(ctx context.Context, bookID int, pos models.Position) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.NewSelect().
			Model(book).
			Column("id", "last_read_at", "total_chapters").
			Where("b.id = ?", bookID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		lastRead := pos.LastReadAt
		if book.LastReadAt != nil && book.LastReadAt.After(lastRead) {
			lastRead = *book.LastReadAt
		}

		book.ChapterOrdinal = max(pos.ChapterOrdinal, 0)
		if book.TotalChapters > 0 {
			book.ChapterOrdinal = min(book.ChapterOrdinal, book.TotalChapters-1)
		}
		book.ChapterFraction = Clamp(pos.ChapterFraction, 0, 1)
		book.ProgressPercent = Clamp(pos.ProgressPercent, 0, 100)
		book.LocationToken = pos.LocationToken
		book.LastReadAt = &lastRead
		book.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().
			Model(book).
			Column("chapter_ordinal", "chapter_fraction", "progress_percent", "location_token", "last_read_at", "updated_at").
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// UpdateStructureInfo stores what the first successful parse learned about
// the book.
func (svc *Service) UpdateStructureInfo(ctx context.Context, bookID int, md document.Metadata, totalChapters int) error {
	book := &models.Book{
		ID:            bookID,
		Title:         md.Title,
		Author:        md.Author,
		TotalChapters: totalChapters,
	}
	return svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"title", "author", "total_chapters"}})
}

// LogSession appends one session-duration row.
func (svc *Service) LogSession(ctx context.Context, rs *models.ReadingSession) error {
	_, err := svc.db.
		NewInsert().
		Model(rs).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListSessions(ctx context.Context, bookID int) ([]*models.ReadingSession, error) {
	sessions := []*models.ReadingSession{}
	err := svc.db.
		NewSelect().
		Model(&sessions).
		Where("rs.book_id = ?", bookID).
		Order("rs.started_at ASC").
		Scan(ctx)
	return sessions, errors.WithStack(err)
}

// Clamp bounds v to [lo, hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
