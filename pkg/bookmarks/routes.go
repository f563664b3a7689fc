package bookmarks

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		bookService:     books.NewService(db),
		bookmarkService: NewService(db),
	}

	g := e.Group("/books/:id")
	g.GET("/bookmarks", h.listBookmarks)
	g.POST("/bookmarks", h.createBookmark)
	g.DELETE("/bookmarks/:bookmarkId", h.deleteBookmark)
	g.GET("/notes", h.listNotes)
	g.POST("/notes", h.createNote)
	g.PATCH("/notes/:noteId", h.updateNote)
	g.DELETE("/notes/:noteId", h.deleteNote)
}
