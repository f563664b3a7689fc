package session

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/epub"
	"github.com/shishobooks/lectern/pkg/fileutils"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/pages"
	"github.com/shishobooks/lectern/pkg/textchunk"
	"github.com/shishobooks/lectern/pkg/unpack"
)

// Document is a loaded book, ready to be handed to a rendering surface.
type Document struct {
	Format    string
	Structure *document.Structure
	Resolver  *location.Resolver
	// Text is the whole decoded text of a flat-text book small enough to be
	// read in one go.
	Text string
}

// SmallText reports whether the document is flat text rendered whole.
func (d *Document) SmallText() bool {
	return d.Format == document.FormatText && !d.Structure.Chunked
}

type Loader interface {
	Load(ctx context.Context, book *models.Book) (*Document, error)
}

// FormatLoader loads a book by its format tag.
type FormatLoader struct {
	unpack         *unpack.Cache
	chunkThreshold int64
	chunkSize      int64
}

func NewFormatLoader(cache *unpack.Cache, chunkThreshold, chunkSize int64) *FormatLoader {
	if chunkThreshold <= 0 {
		chunkThreshold = textchunk.DefaultThreshold
	}
	if chunkSize <= 0 {
		chunkSize = textchunk.DefaultChunkSize
	}
	return &FormatLoader{unpack: cache, chunkThreshold: chunkThreshold, chunkSize: chunkSize}
}

func (l *FormatLoader) Load(ctx context.Context, book *models.Book) (*Document, error) {
	var (
		s    *document.Structure
		text string
		err  error
	)

	switch book.Format {
	case document.FormatEPUB:
		s, err = l.loadEPUB(ctx, book)
	case document.FormatCBZ:
		s, err = pages.Structure(book.SourcePath, bookMetadata(book))
		if err != nil {
			err = &unpack.Error{BookID: book.ID, SourcePath: book.SourcePath, Err: err}
		}
	case document.FormatPDF:
		s = l.loadPDF(ctx, book)
	case document.FormatText:
		s, text, err = l.loadText(book)
	default:
		return nil, errors.Wrapf(unpack.ErrUnsupportedFormat, "format %q", book.Format)
	}
	if err != nil {
		return nil, err
	}

	// An abandoned load must not hand back a result.
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Document{
		Format:    book.Format,
		Structure: s,
		Resolver:  location.NewResolver(s),
		Text:      text,
	}, nil
}

// loadEPUB parses the extracted book. A structure that fails to parse from an
// extraction left by an earlier load is re-extracted once from the source
// before the failure is reported.
func (l *FormatLoader) loadEPUB(ctx context.Context, book *models.Book) (*document.Structure, error) {
	cached := fileutils.DirExists(l.unpack.BookDir(book.ID))
	root, err := l.unpack.Unpack(ctx, book.ID, book.SourcePath)
	if err != nil {
		return nil, err
	}
	s, err := epub.LoadOrParse(ctx, root)

	var spe *epub.StructureParseError
	if !cached || !errors.As(err, &spe) {
		return s, err
	}

	logger.FromContext(ctx).Err(err).Warn("re-extracting book after structure parse failure", logger.Data{"book_id": book.ID})
	if err := l.unpack.Invalidate(book.ID); err != nil {
		return nil, err
	}
	root, err = l.unpack.Unpack(ctx, book.ID, book.SourcePath)
	if err != nil {
		return nil, err
	}
	return epub.LoadOrParse(ctx, root)
}

// loadPDF never fails: the page count is only a hint, and the surface
// reports the real one after its first render.
func (l *FormatLoader) loadPDF(ctx context.Context, book *models.Book) *document.Structure {
	n, err := pages.PDFPageCount(book.SourcePath)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("pdf page count unavailable", logger.Data{"path": book.SourcePath})
		n = 0
	}

	spine := make([]*document.ChapterRef, 0, n)
	for i := 0; i < n; i++ {
		spine = append(spine, &document.ChapterRef{
			ID:    "page-" + strconv.Itoa(i),
			Label: fmt.Sprintf("Page %d", i+1),
			Href:  fmt.Sprintf("#page=%d", i+1),
		})
	}
	return &document.Structure{
		Metadata:     bookMetadata(book),
		Spine:        spine,
		TOC:          document.FlatTOC(spine),
		TOCFromSpine: true,
	}
}

func (l *FormatLoader) loadText(book *models.Book) (*document.Structure, string, error) {
	info, err := os.Stat(book.SourcePath)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	if info.Size() > l.chunkThreshold {
		s, err := textchunk.BuildChunked(book.SourcePath, l.chunkSize)
		return s, "", err
	}
	return textchunk.BuildSmall(book.SourcePath)
}

func bookMetadata(book *models.Book) document.Metadata {
	return document.Metadata{Title: book.Title, Author: book.Author}
}
