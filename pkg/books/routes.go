package books

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	g := e.Group("/books")
	RegisterRoutesWithGroup(g, db)
}

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		bookService: NewService(db),
	}

	g.POST("", h.register)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/sessions", h.sessions)
}
