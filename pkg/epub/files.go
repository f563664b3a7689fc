package epub

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// maxDocumentSize caps any single XML/XHTML document read by the parser.
const maxDocumentSize = 32 * 1024 * 1024

// readLimited reads a file, refusing anything larger than limit.
func readLimited(p string, limit int64) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if int64(len(data)) > limit {
		return nil, errors.Errorf("%s exceeds %d bytes", filepath.Base(p), limit)
	}
	return data, nil
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// decodeXML unmarshals data, honouring a non-UTF-8 encoding declared in the
// XML prolog.
func decodeXML(data []byte, v interface{}) error {
	d := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	d.CharsetReader = charset.NewReaderLabel
	d.Strict = false
	return errors.WithStack(d.Decode(v))
}

// splitFragment separates "a/b.xhtml#frag" into "a/b.xhtml" and "frag".
func splitFragment(href string) (string, string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}

// resolveHref resolves href (relative to the archive-internal document
// docPath) to an absolute filesystem path under root. The fragment, if any,
// is kept. It returns "" when href is external or escapes the archive.
func resolveHref(root, docPath, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") || strings.Contains(href, "://") {
		return ""
	}

	p, frag := splitFragment(href)
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}

	joined := path.Clean(path.Join(path.Dir(docPath), p))
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return ""
	}

	abs := filepath.Join(root, filepath.FromSlash(joined))
	if frag != "" {
		return abs + "#" + frag
	}
	return abs
}
