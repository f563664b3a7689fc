package books

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/migrations"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createBook(t *testing.T, svc *Service, totalChapters int) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:         "Test Book",
		Author:        "Someone",
		SourcePath:    "/books/" + uuid.NewString() + ".epub",
		Format:        document.FormatEPUB,
		TotalChapters: totalChapters,
	}
	require.NoError(t, svc.CreateBook(context.Background(), book))
	return book
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	dir := t.TempDir()

	epubPath := testgen.GenerateEPUB(t, dir, "My Novel.epub", testgen.EPUBOptions{Chapters: 2})
	book, created, err := svc.Register(ctx, epubPath)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, document.FormatEPUB, book.Format)
	assert.Equal(t, "My Novel", book.Title)
	assert.Equal(t, document.UnknownAuthor, book.Author)
	assert.NotZero(t, book.ID)

	again, created, err := svc.Register(ctx, epubPath)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, book.ID, again.ID)

	cbzPath := testgen.GenerateCBZ(t, dir, "comic.cbz", testgen.CBZOptions{})
	book, _, err = svc.Register(ctx, cbzPath)
	require.NoError(t, err)
	assert.Equal(t, document.FormatCBZ, book.Format)

	txtPath := testgen.GenerateText(t, dir, "notes.txt", 2048)
	book, _, err = svc.Register(ctx, txtPath)
	require.NoError(t, err)
	assert.Equal(t, document.FormatText, book.Format)
}

func TestRegister_Rejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	dir := t.TempDir()

	_, _, err := svc.Register(ctx, dir+"/missing.epub")
	var ec *errcodes.Error
	require.True(t, errors.As(err, &ec))
	assert.Equal(t, 422, ec.HTTPCode)

	png := testgen.WriteFile(t, dir, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	_, _, err = svc.Register(ctx, png)
	require.True(t, errors.As(err, &ec))
	assert.Equal(t, 415, ec.HTTPCode)
}

func TestRetrieveBook_NotFound(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))

	id := 999
	_, err := svc.RetrieveBook(context.Background(), RetrieveBookOptions{ID: &id})
	assert.True(t, errors.Is(err, errcodes.NotFound("Book")))
}

// A position written with ordinal 5 and fraction 0.25 reads back unchanged.
func TestUpdateProgress_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	book := createBook(t, svc, 10)

	token := "epubcfi(/6/12!/4/2/1:0)"
	now := time.Now().UTC().Truncate(time.Millisecond)
	err := svc.UpdateProgress(ctx, book.ID, models.Position{
		ChapterOrdinal:  5,
		ChapterFraction: 0.25,
		ProgressPercent: 52.5,
		LocationToken:   &token,
		LastReadAt:      now,
	})
	require.NoError(t, err)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 5, got.ChapterOrdinal)
	assert.InDelta(t, 0.25, got.ChapterFraction, 1e-9)
	assert.InDelta(t, 52.5, got.ProgressPercent, 1e-9)
	require.NotNil(t, got.LocationToken)
	assert.Equal(t, token, *got.LocationToken)
	require.NotNil(t, got.LastReadAt)
	assert.True(t, now.Equal(*got.LastReadAt), "%s != %s", now, got.LastReadAt)
}

func TestUpdateProgress_Clamps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	book := createBook(t, svc, 4)

	err := svc.UpdateProgress(ctx, book.ID, models.Position{
		ChapterOrdinal:  12,
		ChapterFraction: 1.7,
		ProgressPercent: 140,
		LastReadAt:      time.Now(),
	})
	require.NoError(t, err)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, got.ChapterOrdinal)
	assert.InDelta(t, 1, got.ChapterFraction, 1e-9)
	assert.InDelta(t, 100, got.ProgressPercent, 1e-9)

	err = svc.UpdateProgress(ctx, book.ID, models.Position{
		ChapterOrdinal:  -2,
		ChapterFraction: math.NaN(),
		ProgressPercent: -5,
		LastReadAt:      time.Now(),
	})
	require.NoError(t, err)

	got, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Zero(t, got.ChapterOrdinal)
	assert.Zero(t, got.ChapterFraction)
	assert.Zero(t, got.ProgressPercent)
}

func TestUpdateProgress_LastReadNeverDecreases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	book := createBook(t, svc, 3)

	later := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, svc.UpdateProgress(ctx, book.ID, models.Position{ChapterOrdinal: 1, LastReadAt: later}))
	require.NoError(t, svc.UpdateProgress(ctx, book.ID, models.Position{ChapterOrdinal: 2, LastReadAt: earlier}))

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.ChapterOrdinal)
	require.NotNil(t, got.LastReadAt)
	assert.True(t, later.Equal(*got.LastReadAt))
}

func TestUpdateProgress_MissingBook(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))
	err := svc.UpdateProgress(context.Background(), 42, models.Position{LastReadAt: time.Now()})
	assert.True(t, errors.Is(err, errcodes.NotFound("Book")))
}

func TestUpdateStructureInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	book := createBook(t, svc, 0)

	err := svc.UpdateStructureInfo(ctx, book.ID, document.Metadata{Title: "Real Title", Author: "Real Author"}, 12)
	require.NoError(t, err)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Real Title", got.Title)
	assert.Equal(t, "Real Author", got.Author)
	assert.Equal(t, 12, got.TotalChapters)

	err = svc.UpdateStructureInfo(ctx, 9999, document.Metadata{}, 1)
	assert.True(t, errors.Is(err, errcodes.NotFound("Book")))
}

func TestLogSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))
	book := createBook(t, svc, 1)

	start := time.Now().Add(-time.Minute)
	require.NoError(t, svc.LogSession(ctx, &models.ReadingSession{
		BookID:     book.ID,
		StartedAt:  start,
		EndedAt:    start.Add(time.Minute),
		DurationMs: 60000,
	}))

	sessions, err := svc.ListSessions(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(60000), sessions[0].DurationMs)
}

func TestListBooks_Order(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(setupTestDB(t))

	unread := createBook(t, svc, 1)
	old := createBook(t, svc, 1)
	recent := createBook(t, svc, 1)
	require.NoError(t, svc.UpdateProgress(ctx, old.ID, models.Position{LastReadAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, svc.UpdateProgress(ctx, recent.ID, models.Position{LastReadAt: time.Now()}))

	books, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, books, 3)
	assert.Equal(t, []int{recent.ID, old.ID, unread.ID}, []int{books[0].ID, books[1].ID, books[2].ID})
}
