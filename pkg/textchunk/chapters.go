package textchunk

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// headingPattern matches lines that look like chapter titles.
var headingPattern = regexp.MustCompile(`(?m)^[ \t]*(` +
	`(?:Chapter|CHAPTER|Part|PART|Book|BOOK)[ \t]+(?:[0-9]+|[IVXLCDM]+|[ivxlcdm]+|One|Two|Three|Four|Five|Six|Seven|Eight|Nine|Ten)\b[^\n]{0,60}` +
	`|Prologue|PROLOGUE|Epilogue|EPILOGUE` +
	`|第[0-9零一二三四五六七八九十百千]+[章节回卷][^\n]{0,30}` +
	`)[ \t]*\r?$`)

// Section is a heuristic chapter of a small text file. Offset and Length are
// byte positions in the decoded UTF-8 text.
type Section struct {
	Title  string
	Offset int64
	Length int64
}

// Decode reads a whole text file as UTF-8. A UTF-16 or UTF-8 byte order mark
// selects the encoding; text without one that is not valid UTF-8 is read as
// Windows-1252.
func Decode(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", errors.WithStack(err)
	}

	hasBOM := bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(raw, []byte{0xFE, 0xFF})

	var dec transform.Transformer
	switch {
	case hasBOM:
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	case utf8.Valid(raw):
		return string(raw), nil
	default:
		dec = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(out), nil
}

// SplitChapters finds chapter headings in text. Text before the first
// heading becomes its own section; text with no headings is one section.
func SplitChapters(text string) []Section {
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Section{{Title: "Full Text", Offset: 0, Length: int64(len(text))}}
	}

	var sections []Section
	if first := matches[0][0]; strings.TrimSpace(text[:first]) != "" {
		sections = append(sections, Section{Title: "Beginning", Offset: 0, Length: int64(first)})
	}

	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Title:  strings.TrimSpace(text[m[2]:m[3]]),
			Offset: int64(start),
			Length: int64(end - start),
		})
	}
	return sections
}

// BuildSmall reads the file at p once. The spine is a single entry covering
// the whole text; the TOC lists the heuristic sections. The decoded text is
// returned for the rendering surface.
func BuildSmall(p string) (*document.Structure, string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	defer f.Close()

	text, err := Decode(f)
	if err != nil {
		return nil, "", err
	}

	md := textMetadata(p)
	whole := &document.ChapterRef{
		ID:     "text",
		Label:  md.Title,
		Href:   Href(0, int64(len(text))),
		Length: int64(len(text)),
	}

	sections := SplitChapters(text)
	toc := make([]*document.ChapterRef, 0, len(sections))
	for _, s := range sections {
		toc = append(toc, &document.ChapterRef{
			ID:     "section-" + strconv.Itoa(len(toc)),
			Label:  s.Title,
			Href:   Href(s.Offset, s.Length),
			Offset: s.Offset,
			Length: s.Length,
		})
	}

	return &document.Structure{
		Root:     filepath.Dir(p),
		Metadata: md,
		Spine:    []*document.ChapterRef{whole},
		TOC:      toc,
	}, text, nil
}
