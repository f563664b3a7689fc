// Package document holds the parsed shape of a book: its metadata, the
// reading-order spine and the table of contents.
package document

// Format tags stored on a book record.
const (
	FormatEPUB = "epub"
	FormatCBZ  = "cbz"
	FormatPDF  = "pdf"
	FormatText = "txt"
)

// IsPageOriented reports whether progress for format is tracked by page.
func IsPageOriented(format string) bool {
	return format == FormatCBZ || format == FormatPDF
}

const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

type Metadata struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	CoverHref      string `json:"cover_href,omitempty"`
	CoverMediaType string `json:"cover_media_type,omitempty"`
	CoverWidth     int    `json:"cover_width,omitempty"`
	CoverHeight    int    `json:"cover_height,omitempty"`
}

// ChapterRef points at one readable unit. For archives Href is an absolute
// path inside the extraction directory; for chunked text it is a txt:// URI.
type ChapterRef struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Href     string        `json:"href"`
	Offset   int64         `json:"offset,omitempty"`
	Length   int64         `json:"length,omitempty"`
	Children []*ChapterRef `json:"children,omitempty"`
}

type Structure struct {
	// Root is the base resolution path handed to the rendering surface.
	Root     string        `json:"root"`
	Metadata Metadata      `json:"metadata"`
	Spine    []*ChapterRef `json:"spine"`
	TOC      []*ChapterRef `json:"toc"`

	// TOCFromSpine is set when no navigation could be read and TOC mirrors
	// Spine.
	TOCFromSpine bool `json:"toc_from_spine"`

	// Chunked is set for oversized text, where every spine entry is a byte
	// window of the file.
	Chunked bool `json:"chunked,omitempty"`
}

// ChapterCount is the number of spine entries (or chunks).
func (s *Structure) ChapterCount() int {
	return len(s.Spine)
}

// Chapter returns the spine entry at ordinal, or nil if it is out of range.
func (s *Structure) Chapter(ordinal int) *ChapterRef {
	if ordinal < 0 || ordinal >= len(s.Spine) {
		return nil
	}
	return s.Spine[ordinal]
}

// FlatTOC builds a TOC that mirrors refs one to one.
func FlatTOC(refs []*ChapterRef) []*ChapterRef {
	toc := make([]*ChapterRef, 0, len(refs))
	for _, r := range refs {
		toc = append(toc, &ChapterRef{ID: r.ID, Label: r.Label, Href: r.Href, Offset: r.Offset, Length: r.Length})
	}
	return toc
}

// Walk visits every entry of a TOC tree depth-first, in document order.
func Walk(refs []*ChapterRef, fn func(ref *ChapterRef, depth int)) {
	var walk func([]*ChapterRef, int)
	walk = func(rs []*ChapterRef, depth int) {
		for _, r := range rs {
			fn(r, depth)
			walk(r.Children, depth+1)
		}
	}
	walk(refs, 0)
}
