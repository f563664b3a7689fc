package chapters

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		chapterService: NewService(db),
		bookService:    books.NewService(db),
	}

	e.GET("/books/:id/chapters", h.list)
}
