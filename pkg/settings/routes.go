package settings

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, store *Store) {
	h := &handler{store: store}

	g := e.Group("/settings")
	g.GET("", h.get)
	g.PUT("", h.update)
}
