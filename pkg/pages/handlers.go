package pages

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/models"
)

type handler struct {
	bookService *books.Service
	cache       *Cache
}

func (h *handler) book(c echo.Context) (*models.Book, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}
	return h.bookService.RetrieveBook(c.Request().Context(), books.RetrieveBookOptions{ID: &id})
}

func (h *handler) page(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if book.Format != document.FormatCBZ {
		return errcodes.ValidationError("Only CBZ books have page images.")
	}

	pageNum, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return errcodes.NotFound("Page")
	}

	p, mimeType, err := h.cache.GetPage(book.SourcePath, book.ID, pageNum)
	if err != nil {
		if errors.Is(err, ErrPageOutOfRange) {
			return errcodes.NotFound("Page")
		}
		return errors.WithStack(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, mimeType)
	return errors.WithStack(c.File(p))
}

// source streams the original file of a page-oriented book; the surface
// renders PDFs itself.
func (h *handler) source(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if !document.IsPageOriented(book.Format) {
		return errcodes.ValidationError("Only page-oriented books are served whole.")
	}
	return errors.WithStack(c.File(book.SourcePath))
}
