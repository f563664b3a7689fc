package unpack

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
)

// ErrUnsupportedFormat is returned by Detect for files no loader can read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Detect sniffs the content of path and returns its document format tag.
// Zip containers are told apart by extension, since a CBZ has no marker
// beyond being a zip of images.
func Detect(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", errors.WithStack(err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case mt.Is("application/epub+zip"):
		return document.FormatEPUB, nil
	case isZip(mt):
		if ext == ".cbz" {
			return document.FormatCBZ, nil
		}
		return document.FormatEPUB, nil
	case mt.Is("application/pdf"):
		return document.FormatPDF, nil
	case isText(mt):
		return document.FormatText, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%s (%s)", filepath.Base(path), mt.String())
}

func isZip(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
