package session

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/lectern/pkg/bookmarks"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, manager *Manager, loader Loader, cache *unpack.Cache) {
	h := &handler{
		manager:         manager,
		loader:          loader,
		unpack:          cache,
		bookService:     books.NewService(db),
		bookmarkService: bookmarks.NewService(db),
		opts:            manager.opts,
	}

	g := e.Group("/sessions")
	g.POST("", h.open)
	g.GET("/:id", h.retrieve)
	g.POST("/:id/jump", h.jump)
	g.POST("/:id/commands", h.command)
	g.POST("/:id/events", h.event)
	g.POST("/:id/bookmarks", h.bookmark)
	g.POST("/:id/notes", h.note)
	g.DELETE("/:id", h.close)
	g.GET("/:id/bridge", h.attach)

	e.GET("/books/:id/structure", h.structure)
	e.GET("/books/:id/chunks/:index", h.chunk)
	e.GET("/books/:id/content/*", h.content)
}
