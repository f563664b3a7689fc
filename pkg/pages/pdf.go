package pages

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// PDFPageCount reads the page tree of the PDF at p. The surface reports the
// authoritative count after its first render; this is only a hint so
// progress can be computed before that.
func PDFPageCount(p string) (int, error) {
	n, err := api.PageCountFile(p)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return n, nil
}
