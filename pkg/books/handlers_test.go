package books

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/shishobooks/lectern/pkg/binder"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// setupTestServer sets up an Echo server with the book routes registered.
func setupTestServer(t *testing.T, db *bun.DB) *echo.Echo {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	RegisterRoutes(e, db)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
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

func TestHandlers_RegisterAndRetrieve(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	e := setupTestServer(t, db)

	p := testgen.GenerateEPUB(t, t.TempDir(), "book.epub", testgen.EPUBOptions{Chapters: 2})
	body, err := json.Marshal(RegisterBookPayload{Path: p})
	require.NoError(t, err)

	rec := doJSON(t, e, http.MethodPost, "/books", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "epub", created.Format)

	rec = doJSON(t, e, http.MethodPost, "/books", string(body))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/books/"+strconv.Itoa(created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, p, got.SourcePath)
}

func TestHandlers_RegisterValidation(t *testing.T) {
	t.Parallel()
	e := setupTestServer(t, setupTestDB(t))

	rec := doJSON(t, e, http.MethodPost, "/books", `{"path":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/books", `{"path":"/definitely/not/here.epub"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/books", `{"file":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlers_RetrieveNotFound(t *testing.T) {
	t.Parallel()
	e := setupTestServer(t, setupTestDB(t))

	assert.Equal(t, http.StatusNotFound, doJSON(t, e, http.MethodGet, "/books/123", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, e, http.MethodGet, "/books/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, e, http.MethodGet, "/books/123/sessions", "").Code)
}

func TestHandlers_List(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db)
	e := setupTestServer(t, db)
	for i := 0; i < 3; i++ {
		createBook(t, svc, 1)
	}

	rec := doJSON(t, e, http.MethodGet, "/books?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Books, 2)
	assert.Equal(t, 3, resp.Total)

	rec = doJSON(t, e, http.MethodGet, "/books?format=mobi", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
