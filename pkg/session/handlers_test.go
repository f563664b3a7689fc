package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/shishobooks/lectern/pkg/binder"
	"github.com/shishobooks/lectern/pkg/bookmarks"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/textchunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func setupTestServer(t *testing.T, f *fixture) (*echo.Echo, *Manager) {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	m := NewManager(f.store, f.loader, nil, f.opts)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	RegisterRoutes(e, f.db, m, f.loader, f.cache)
	return e, m
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func openSession(t *testing.T, e *echo.Echo, bookID int) View {
	t.Helper()
	rec := serve(e, http.MethodPost, "/sessions", `{"book_id":`+strconv.Itoa(bookID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandlers_SessionLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e, m := setupTestServer(t, f)
	book := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Title: "Lifecycle", Chapters: 4}))

	v := openSession(t, e, book.ID)
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, "Lifecycle", v.Title)
	assert.Equal(t, 4, v.TotalChapters)

	rec := serve(e, http.MethodPost, "/sessions", `{"book_id":`+strconv.Itoa(book.ID)+`}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	base := "/sessions/" + v.ID
	rec = serve(e, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodPost, base+"/jump", `{"location_token":"chapter:2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var jumped struct {
		Applied bool `json:"applied"`
		Session View `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jumped))
	assert.True(t, jumped.Applied)
	assert.Equal(t, 2, jumped.Session.ChapterOrdinal)

	rec = serve(e, http.MethodPost, base+"/jump", `{"location_token":"chapter:nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(e, http.MethodPost, base+"/jump", `{"location_token":"missing.xhtml"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jumped))
	assert.False(t, jumped.Applied)

	rec = serve(e, http.MethodPost, base+"/commands", `{"type":"search","query":"whale"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e, http.MethodPost, base+"/commands", `{"type":"search"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = serve(e, http.MethodPost, base+"/commands", `{"type":"explode"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	s, ok := m.Get(v.ID)
	require.True(t, ok)
	rec = serve(e, http.MethodPost, base+"/events", `{"type":"SCROLL","percentage":30}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = serve(e, http.MethodPost, base+"/events", `{"type":"WIGGLE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	barrier(t, s.Controller)
	assert.InDelta(t, 0.3, s.View().ChapterFraction, 1e-9)

	rec = serve(e, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(e, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	saved := f.retrieve(t, book.ID)
	assert.Equal(t, 2, saved.ChapterOrdinal)
	assert.InDelta(t, 0.3, saved.ChapterFraction, 1e-9)
}

func TestHandlers_OpenFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e, _ := setupTestServer(t, f)

	rec := serve(e, http.MethodPost, "/sessions", `{"book_id":999}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	book := f.register(t, testgen.GenerateCorruptEPUB(t, t.TempDir(), "broken.epub"))
	rec = serve(e, http.MethodPost, "/sessions", `{"book_id":`+strconv.Itoa(book.ID)+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errcodes.KindUnpack, errorCode(t, rec))
}

func TestHandlers_BookmarkAndNote(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e, m := setupTestServer(t, f)
	book := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 3}))

	v := openSession(t, e, book.ID)
	base := "/sessions/" + v.ID

	rec := serve(e, http.MethodPost, base+"/jump", `{"location_token":"ch02.xhtml#section2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(e, http.MethodPost, base+"/bookmarks", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bm models.Bookmark
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bm))
	assert.Equal(t, "ch02.xhtml#section2", bm.LocationToken)
	assert.NotEmpty(t, bm.Preview)

	rec = serve(e, http.MethodPost, base+"/notes", `{"body":"remember this"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	s, ok := m.Get(v.ID)
	require.True(t, ok)
	sim := bridge.NewSimulator(bridge.Viewport{Flow: bridge.FlowPaginated, Width: 100, Height: 200, ScrollWidth: 300})
	require.NoError(t, s.Outbox.Attach(context.Background(), sim))

	s.HandleEvent(bridge.Event{Type: bridge.EventSelection, Text: "  a chosen   phrase ", LocationToken: "epubcfi(/6/4!/4/2,/1:0,/1:8)"})
	barrier(t, s.Controller)

	rec = serve(e, http.MethodPost, base+"/notes", `{"body":"remember this"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var n models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, "yellow", n.Color)
	assert.Equal(t, "a chosen phrase", n.Preview)

	hl, ok := sim.Last(bridge.CommandApplyHighlights)
	require.True(t, ok)
	require.Len(t, hl.Highlights, 1)
	assert.Equal(t, n.ID, hl.Highlights[0].ID)

	notes, err := bookmarks.NewService(f.db).ListNotes(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestHandlers_BookResources(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.loader = NewFormatLoader(f.cache, 1024, 256)
	e, _ := setupTestServer(t, f)

	epubBook := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 2}))
	textBook := f.register(t, testgen.GenerateText(t, t.TempDir(), "big.txt", 3000))

	t.Run("structure", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/books/"+strconv.Itoa(epubBook.ID)+"/structure", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "ch02.xhtml")

		rec = serve(e, http.MethodGet, "/books/424242/structure", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("content", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/books/"+strconv.Itoa(epubBook.ID)+"/content/OEBPS/ch01.xhtml", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "section2")

		rec = serve(e, http.MethodGet, "/books/"+strconv.Itoa(epubBook.ID)+"/content/..%2F..%2Fetc%2Fpasswd", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = serve(e, http.MethodGet, "/books/"+strconv.Itoa(epubBook.ID)+"/content/OEBPS/missing.xhtml", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("chunks", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/books/"+strconv.Itoa(textBook.ID)+"/chunks/3", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(testgen.TextRange(768, 256)), rec.Body.String())
		assert.Equal(t, textchunk.Href(768, 256), rec.Header().Get("X-Chunk-Href"))

		rec = serve(e, http.MethodGet, "/books/"+strconv.Itoa(textBook.ID)+"/chunks/11", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, rec.Body.Bytes(), 3000-11*256)

		rec = serve(e, http.MethodGet, "/books/"+strconv.Itoa(textBook.ID)+"/chunks/12", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = serve(e, http.MethodGet, "/books/"+strconv.Itoa(epubBook.ID)+"/chunks/0", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestHandlers_BridgeWebsocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e, m := setupTestServer(t, f)
	book := f.register(t, testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 3}))

	v := openSession(t, e, book.ID)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + v.ID + "/bridge"
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))

	receive := func() bridge.Command {
		var frame string
		require.NoError(t, websocket.Message.Receive(conn, &frame))
		var cmd bridge.Command
		require.NoError(t, json.Unmarshal([]byte(frame), &cmd))
		return cmd
	}

	// Queued commands are replayed on attach.
	assert.Equal(t, bridge.CommandSetStyle, receive().Type)
	load := receive()
	assert.Equal(t, bridge.CommandLoadContent, load.Type)
	assert.Equal(t, contentURL(book.ID), load.BaseURL)

	require.NoError(t, websocket.Message.Send(conn, `{"type":"READY","loadId":`+strconv.Itoa(load.LoadID)+`}`))
	require.NoError(t, websocket.Message.Send(conn, `{"type":"TAP_RIGHT"}`))
	turn := receive()
	assert.Equal(t, bridge.CommandTurnPage, turn.Type)
	assert.Equal(t, bridge.DirectionNext, turn.Direction)

	require.NoError(t, websocket.Message.Send(conn, `{"type":"NEXT_CHAPTER"}`))
	next := receive()
	assert.Equal(t, bridge.CommandLoadContent, next.Type)
	assert.Equal(t, 1, *next.Ordinal)

	s, ok := m.Get(v.ID)
	require.True(t, ok)
	barrier(t, s.Controller)
	assert.Equal(t, 1, s.View().ChapterOrdinal)
}
