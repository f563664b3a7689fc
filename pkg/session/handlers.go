package session

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/bookmarks"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/fileutils"
	"github.com/shishobooks/lectern/pkg/htmlutil"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/textchunk"
	"github.com/shishobooks/lectern/pkg/unpack"
	"golang.org/x/net/websocket"
)

const maxEventSize = 64 * 1024

type handler struct {
	manager         *Manager
	loader          Loader
	unpack          *unpack.Cache
	bookService     *books.Service
	bookmarkService *bookmarks.Service
	opts            Options
}

func (h *handler) session(c echo.Context) (*Session, error) {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return nil, errcodes.NotFound("Session")
	}
	return s, nil
}

func (h *handler) book(c echo.Context) (*models.Book, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}
	return h.bookService.RetrieveBook(c.Request().Context(), books.RetrieveBookOptions{ID: &id})
}

func (h *handler) open(c echo.Context) error {
	ctx := c.Request().Context()

	params := OpenSessionPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	s, created, err := h.manager.Open(ctx, params.BookID)
	if err != nil {
		return errors.WithStack(httpError(err))
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return errors.WithStack(c.JSON(status, s.View()))
}

func (h *handler) retrieve(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, s.View()))
}

func (h *handler) jump(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.session(c)
	if err != nil {
		return err
	}

	params := JumpPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	applied, err := s.Jump(ctx, params.LocationToken)
	if err != nil {
		if errors.Is(err, location.ErrMalformedToken) {
			return errcodes.ValidationError("location_token is not a valid location")
		}
		return errors.WithStack(httpError(err))
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"applied": applied,
		"session": s.View(),
	}))
}

func (h *handler) command(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.session(c)
	if err != nil {
		return err
	}

	params := CommandPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	switch params.Type {
	case "turn_page":
		dir := bridge.DirectionNext
		if params.Direction == string(bridge.DirectionPrev) {
			dir = bridge.DirectionPrev
		}
		err = s.TurnPage(ctx, dir)
	case "search":
		if params.Query == "" {
			return errcodes.ValidationError("query is required for search")
		}
		err = s.Search(ctx, params.Query)
	case "find_next":
		err = s.FindNext(ctx)
	case "find_previous":
		err = s.FindPrevious(ctx)
	case "refresh_highlights":
		err = s.RefreshHighlights(ctx)
	case "checkpoint":
		err = s.Checkpoint(ctx)
	}
	if err != nil {
		return errors.WithStack(httpError(err))
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

// event accepts one bridge event over plain HTTP, for surfaces that cannot
// hold a websocket open.
func (h *handler) event(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventSize))
	if err != nil {
		return errors.WithStack(err)
	}
	ev, err := bridge.DecodeEvent(data)
	if err != nil {
		if errors.Is(err, bridge.ErrUnknownEvent) {
			return errcodes.ValidationError("Unknown event type.")
		}
		return errcodes.MalformedPayload()
	}

	s.HandleEvent(ev)
	return errors.WithStack(c.NoContent(http.StatusAccepted))
}

func (h *handler) bookmark(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.session(c)
	if err != nil {
		return err
	}

	here, err := s.Here(ctx)
	if err != nil {
		return errors.WithStack(httpError(err))
	}

	bm := &models.Bookmark{
		BookID:        s.BookID(),
		LocationToken: here.LocationToken,
		Preview:       here.Preview,
	}
	if err := h.bookmarkService.CreateBookmark(ctx, bm); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, bm))
}

// note attaches a note to the surface's current selection.
func (h *handler) note(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.session(c)
	if err != nil {
		return err
	}

	params := CreateNotePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	sel := s.View().Selection
	if sel == nil || sel.LocationToken == "" {
		return errcodes.ValidationError("There is no selection to attach a note to.")
	}

	n := &models.Note{
		BookID:        s.BookID(),
		LocationToken: sel.LocationToken,
		Preview:       htmlutil.Preview(sel.Text, htmlutil.DefaultPreviewLength),
		Body:          params.Body,
		Color:         params.Color,
	}
	if err := h.bookmarkService.CreateNote(ctx, n); err != nil {
		return errors.WithStack(err)
	}
	if err := s.RefreshHighlights(ctx); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to refresh highlights")
	}
	return errors.WithStack(c.JSON(http.StatusCreated, n))
}

func (h *handler) close(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.manager.Close(ctx, c.Param("id")); err != nil {
		return errors.WithStack(httpError(err))
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

// attach upgrades to a websocket that carries commands to the surface and
// events back. Commands queued while no surface was attached are replayed
// first.
func (h *handler) attach(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	log := logger.FromContext(c.Request().Context()).Root(logger.Data{"session_id": s.ID()})

	websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
		defer cancel()

		surface := bridge.NewWebsocketSurface(conn)
		if err := s.Outbox.Attach(ctx, surface); err != nil {
			log.Err(err).Warn("failed to replay queued commands")
			return
		}
		defer s.Outbox.Detach(surface)

		log.Info("surface attached")
		if err := bridge.ReadEvents(ctx, conn, s.HandleEvent); err != nil {
			log.Err(err).Warn("surface connection closed")
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

func (h *handler) structure(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.opts.LoadTimeout)
	defer cancel()

	doc, err := h.loader.Load(ctx, book)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &LoadTimeoutError{BookID: book.ID, Timeout: h.opts.LoadTimeout}
		}
		return errors.WithStack(httpError(err))
	}
	return errors.WithStack(c.JSON(http.StatusOK, doc.Structure))
}

// chunk serves one byte window of an oversized text book.
func (h *handler) chunk(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if book.Format != document.FormatText {
		return errcodes.ValidationError("Only text books have chunks.")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return errcodes.NotFound("Chunk")
	}

	doc, err := h.loader.Load(c.Request().Context(), book)
	if err != nil {
		return errors.WithStack(httpError(err))
	}
	ref := doc.Structure.Chapter(index)
	if !doc.Structure.Chunked || ref == nil {
		return errcodes.NotFound("Chunk")
	}

	data, err := readWindow(book.SourcePath, ref)
	if err != nil {
		return errors.WithStack(err)
	}
	c.Response().Header().Set("X-Chunk-Href", textchunk.Href(ref.Offset, ref.Length))
	return errors.WithStack(c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, data))
}

// content serves a file from a book's extraction directory. It is the base
// resolution path handed to the surface with each chapter.
func (h *handler) content(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if book.Format != document.FormatEPUB {
		return errcodes.NotFound("Content")
	}

	root := h.unpack.BookDir(book.ID)
	if !fileutils.DirExists(root) {
		return errcodes.NotFound("Content")
	}
	name, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return errcodes.NotFound("Content")
	}
	p, err := fileutils.SafeJoin(root, name)
	if err != nil {
		return errcodes.NotFound("Content")
	}
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return errcodes.NotFound("Content")
	}
	return errors.WithStack(c.File(p))
}
