package settings

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	store *Store
}

func (h *handler) get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Get())
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	payload := h.store.Get()
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	updated, err := h.store.Update(ctx, payload)
	if err != nil {
		return errors.WithStack(err)
	}
	return c.JSON(http.StatusOK, updated)
}
