package chapters

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/errcodes"
)

type handler struct {
	chapterService *Service
	bookService    *books.Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// Verify book exists
	if _, err := h.bookService.RetrieveBook(ctx, books.RetrieveBookOptions{ID: &bookID}); err != nil {
		return errors.WithStack(err)
	}

	chapters, err := h.chapterService.ListChapters(ctx, bookID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": chapters,
	}))
}
