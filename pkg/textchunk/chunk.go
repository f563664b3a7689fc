// Package textchunk pages flat-text books. Files above a size threshold are
// cut into fixed byte windows that are read lazily; smaller files are read
// whole and split into chapters by heading.
package textchunk

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
)

const (
	DefaultThreshold int64 = 2 * 1024 * 1024
	DefaultChunkSize int64 = 30 * 1024
)

const hrefScheme = "txt://"

var ErrMalformedHref = errors.New("malformed text href")

// Window is one byte range [Offset, Offset+Length) of a file.
type Window struct {
	Index  int
	Offset int64
	Length int64
}

// Windows partitions [0, size) into ceil(size/chunkSize) windows. Only the
// last window may be shorter than chunkSize.
func Windows(size, chunkSize int64) []Window {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}
	n := (size + chunkSize - 1) / chunkSize
	windows := make([]Window, 0, n)
	for i := int64(0); i < n; i++ {
		off := i * chunkSize
		length := chunkSize
		if off+length > size {
			length = size - off
		}
		windows = append(windows, Window{Index: int(i), Offset: off, Length: length})
	}
	return windows
}

// Href encodes a byte window as txt://<offset>?len=<length>.
func Href(offset, length int64) string {
	return fmt.Sprintf("%s%d?len=%d", hrefScheme, offset, length)
}

// IsHref reports whether s uses the txt:// scheme.
func IsHref(s string) bool {
	return strings.HasPrefix(s, hrefScheme)
}

// ParseHref decodes an Href. A missing len parameter yields length 0.
func ParseHref(href string) (offset, length int64, err error) {
	if !IsHref(href) {
		return 0, 0, errors.Wrapf(ErrMalformedHref, "%q", href)
	}
	rest := strings.TrimPrefix(href, hrefScheme)
	offPart, query, _ := strings.Cut(rest, "?")

	offset, err = strconv.ParseInt(offPart, 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, errors.Wrapf(ErrMalformedHref, "%q", href)
	}

	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return 0, 0, errors.Wrapf(ErrMalformedHref, "%q", href)
		}
		if l := values.Get("len"); l != "" {
			length, err = strconv.ParseInt(l, 10, 64)
			if err != nil || length < 0 {
				return 0, 0, errors.Wrapf(ErrMalformedHref, "%q", href)
			}
		}
	}
	return offset, length, nil
}

// BuildChunked returns a structure whose spine is the byte windows of the
// file at p. The file content is not read.
func BuildChunked(p string, chunkSize int64) (*document.Structure, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	windows := Windows(info.Size(), chunkSize)
	spine := make([]*document.ChapterRef, 0, len(windows))
	for _, w := range windows {
		spine = append(spine, &document.ChapterRef{
			ID:     fmt.Sprintf("chunk-%d", w.Index),
			Label:  fmt.Sprintf("Part %d", w.Index+1),
			Href:   Href(w.Offset, w.Length),
			Offset: w.Offset,
			Length: w.Length,
		})
	}

	return &document.Structure{
		Root:         filepath.Dir(p),
		Metadata:     textMetadata(p),
		Spine:        spine,
		TOC:          document.FlatTOC(spine),
		TOCFromSpine: true,
		Chunked:      true,
	}, nil
}

func textMetadata(p string) document.Metadata {
	base := filepath.Base(p)
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if title == "" {
		title = document.UnknownTitle
	}
	return document.Metadata{Title: title, Author: document.UnknownAuthor}
}

// File gives random access to an oversized text file.
type File struct {
	f    *os.File
	size int64
}

func Open(p string) (*File, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	return &File{f: f, size: info.Size()}, nil
}

func (tf *File) Size() int64 {
	return tf.size
}

// ReadChunk reads exactly the bytes [offset, offset+length), clipped to the
// end of the file.
func (tf *File) ReadChunk(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset > tf.size {
		return nil, errors.Errorf("range %d+%d outside file of %d bytes", offset, length, tf.size)
	}
	if offset+length > tf.size {
		length = tf.size - offset
	}

	buf := make([]byte, length)
	n, err := tf.f.ReadAt(buf, offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, errors.WithStack(err)
	}
	return buf[:n], nil
}

// ReadText reads the window [offset, offset+length) snapped to UTF-8 rune
// boundaries. A rune straddling the start belongs to the previous window and
// is dropped; one straddling the end is completed from the next window.
func (tf *File) ReadText(offset, length int64) (string, error) {
	buf, err := tf.ReadChunk(offset, length+utf8.UTFMax-1)
	if err != nil {
		return "", err
	}

	start := 0
	if offset > 0 {
		for start < utf8.UTFMax-1 && start < len(buf) && !utf8.RuneStart(buf[start]) {
			start++
		}
	}
	end := min(int(length), len(buf))
	for end < len(buf) && !utf8.RuneStart(buf[end]) {
		end++
	}
	if end < start {
		end = start
	}
	return string(buf[start:end]), nil
}

func (tf *File) Close() error {
	return errors.WithStack(tf.f.Close())
}

// ReadText opens p and reads one window from it as text.
func ReadText(p string, offset, length int64) (string, error) {
	tf, err := Open(p)
	if err != nil {
		return "", err
	}
	defer tf.Close()
	return tf.ReadText(offset, length)
}

// ReadChunk opens p and reads one window from it.
func ReadChunk(p string, offset, length int64) ([]byte, error) {
	tf, err := Open(p)
	if err != nil {
		return nil, err
	}
	defer tf.Close()
	return tf.ReadChunk(offset, length)
}
