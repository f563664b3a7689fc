package bookmarks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/htmlutil"
	"github.com/shishobooks/lectern/pkg/models"
)

type handler struct {
	bookService     *books.Service
	bookmarkService *Service
}

// bookID parses :id and makes sure the book exists.
func (h *handler) bookID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	if _, err := h.bookService.RetrieveBook(c.Request().Context(), books.RetrieveBookOptions{ID: &id}); err != nil {
		return 0, err
	}
	return id, nil
}

func (h *handler) listBookmarks(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}
	bms, err := h.bookmarkService.ListBookmarks(c.Request().Context(), bookID)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, bms))
}

func (h *handler) createBookmark(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	params := CreateBookmarkPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	bm := &models.Bookmark{
		BookID:        bookID,
		LocationToken: params.LocationToken,
		Preview:       htmlutil.Preview(params.Preview, htmlutil.DefaultPreviewLength),
	}
	if err := h.bookmarkService.CreateBookmark(c.Request().Context(), bm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, bm))
}

func (h *handler) deleteBookmark(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.bookmarkService.DeleteBookmark(c.Request().Context(), bookID, c.Param("bookmarkId")); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) listNotes(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}
	notes, err := h.bookmarkService.ListNotes(c.Request().Context(), bookID)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, notes))
}

func (h *handler) createNote(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	params := CreateNotePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	n := &models.Note{
		BookID:        bookID,
		LocationToken: params.LocationToken,
		Preview:       htmlutil.Preview(params.Preview, htmlutil.DefaultPreviewLength),
		Body:          params.Body,
		Color:         params.Color,
	}
	if err := h.bookmarkService.CreateNote(c.Request().Context(), n); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, n))
}

func (h *handler) updateNote(c echo.Context) error {
	ctx := c.Request().Context()
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}

	params := UpdateNotePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	n, err := h.bookmarkService.RetrieveNote(ctx, bookID, c.Param("noteId"))
	if err != nil {
		return errors.WithStack(err)
	}
	if params.Body != nil {
		n.Body = *params.Body
	}
	if params.Color != nil {
		n.Color = *params.Color
	}
	if err := h.bookmarkService.UpdateNote(ctx, n); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, n))
}

func (h *handler) deleteNote(c echo.Context) error {
	bookID, err := h.bookID(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.bookmarkService.DeleteNote(c.Request().Context(), bookID, c.Param("noteId")); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
