package pages

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, cache *Cache) {
	h := &handler{
		bookService: books.NewService(db),
		cache:       cache,
	}

	e.GET("/books/:id/pages/:page", h.page)
	e.GET("/books/:id/source", h.source)
}
