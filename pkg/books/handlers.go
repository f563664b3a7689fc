package books

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/models"
)

type handler struct {
	bookService *Service
}

func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	params := RegisterBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, created, err := h.bookService.Register(ctx, params.Path)
	if err != nil {
		return errors.WithStack(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		log.Info("book registered", logger.Data{"book_id": book.ID, "format": book.Format})
	}
	return errors.WithStack(c.JSON(status, book))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Format: params.Format,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) sessions(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}
	if _, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id}); err != nil {
		return errors.WithStack(err)
	}

	sessions, err := h.bookService.ListSessions(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, sessions))
}
