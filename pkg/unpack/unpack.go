// Package unpack extracts book archives into a stable per-book directory.
package unpack

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/fileutils"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntrySize caps a single decompressed entry (256 MB).
// This prevents decompression bombs from filling the disk.
const DefaultMaxEntrySize = 256 * 1024 * 1024

const tmpPrefix = ".tmp-"

// Cache owns the extraction directories under dir/books.
type Cache struct {
	dir          string
	maxEntrySize int64
	group        singleflight.Group
}

type Option func(*Cache)

// WithMaxEntrySize overrides DefaultMaxEntrySize.
func WithMaxEntrySize(n int64) Option {
	return func(c *Cache) {
		c.maxEntrySize = n
	}
}

func NewCache(dir string, opts ...Option) *Cache {
	c := &Cache{dir: dir, maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BookDir is where the archive for bookID is (or will be) extracted.
func (c *Cache) BookDir(bookID int) string {
	return filepath.Join(c.dir, "books", strconv.Itoa(bookID))
}

func (c *Cache) stagingDir() string {
	return filepath.Join(c.dir, "staging")
}

// Unpack extracts src into BookDir(bookID) and returns that directory. If the
// directory already exists it is returned as is. Concurrent calls for the same
// book share one extraction.
func (c *Cache) Unpack(ctx context.Context, bookID int, src string) (string, error) {
	dest := c.BookDir(bookID)
	if fileutils.DirExists(dest) {
		return dest, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(bookID), func() (interface{}, error) {
		if fileutils.DirExists(dest) {
			return dest, nil
		}
		if err := c.extract(ctx, src, dest); err != nil {
			return "", &Error{BookID: bookID, SourcePath: src, Err: err}
		}
		return dest, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) extract(ctx context.Context, src, dest string) error {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(c.stagingDir(), 0755); err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.WithStack(err)
	}

	// Archive readers read from an ASCII-named copy, never from src.
	staging := filepath.Join(c.stagingDir(), fileutils.StagingName(src))
	defer os.Remove(staging)

	if err := fileutils.CopyFile(src, staging); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	mt, err := mimetype.DetectFile(staging)
	if err != nil {
		return errors.WithStack(err)
	}
	if !isZip(mt) {
		return errors.Wrapf(ErrNotArchive, "detected %s", mt.String())
	}

	zr, err := zip.OpenReader(staging)
	if err != nil {
		return errors.Wrap(err, "failed to open archive")
	}
	defer zr.Close()

	// Entries land in a sibling temp dir so a crash never leaves a partial
	// BookDir behind.
	tmp := filepath.Join(filepath.Dir(dest), tmpPrefix+uuid.NewString())
	defer os.RemoveAll(tmp)

	if err := os.MkdirAll(tmp, 0755); err != nil {
		return errors.WithStack(err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		if err := c.extractEntry(f, tmp); err != nil {
			return err
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return errors.WithStack(err)
	}

	log.Info("unpacked archive", logger.Data{"dir": dest, "entries": len(zr.File)})
	return nil
}

func (c *Cache) extractEntry(f *zip.File, root string) error {
	target, err := fileutils.SafeJoin(root, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return errors.WithStack(os.MkdirAll(target, 0755))
	}

	if f.UncompressedSize64 > uint64(c.maxEntrySize) {
		return errors.Wrapf(ErrEntryTooLarge, "%s: %d bytes", f.Name, f.UncompressedSize64)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.WithStack(err)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return errors.WithStack(err)
	}
	defer out.Close()

	// The declared size may be forged; read one byte past the limit to catch it.
	n, err := io.Copy(out, io.LimitReader(rc, c.maxEntrySize+1))
	if err != nil {
		return errors.Wrapf(err, "read entry %s", f.Name)
	}
	if n > c.maxEntrySize {
		return errors.Wrapf(ErrEntryTooLarge, "%s: decompressed size exceeds %d bytes", f.Name, c.maxEntrySize)
	}
	return nil
}

// Invalidate removes the extraction for bookID so the next Unpack starts over.
func (c *Cache) Invalidate(bookID int) error {
	return errors.WithStack(os.RemoveAll(c.BookDir(bookID)))
}

// CleanupStale removes staging copies and half-written extractions left by a
// previous process.
func (c *Cache) CleanupStale() (int, error) {
	removed := 0

	staging, err := os.ReadDir(c.stagingDir())
	if err != nil && !os.IsNotExist(err) {
		return 0, errors.WithStack(err)
	}
	for _, e := range staging {
		if err := os.RemoveAll(filepath.Join(c.stagingDir(), e.Name())); err != nil {
			return removed, errors.WithStack(err)
		}
		removed++
	}

	booksDir := filepath.Join(c.dir, "books")
	books, err := os.ReadDir(booksDir)
	if err != nil && !os.IsNotExist(err) {
		return removed, errors.WithStack(err)
	}
	for _, e := range books {
		if !strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(booksDir, e.Name())); err != nil {
			return removed, errors.WithStack(err)
		}
		removed++
	}

	return removed, nil
}
