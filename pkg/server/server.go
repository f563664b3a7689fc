package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/lectern/pkg/binder"
	"github.com/shishobooks/lectern/pkg/bookmarks"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/chapters"
	"github.com/shishobooks/lectern/pkg/config"
	"github.com/shishobooks/lectern/pkg/errcodes"
	"github.com/shishobooks/lectern/pkg/pages"
	"github.com/shishobooks/lectern/pkg/session"
	"github.com/shishobooks/lectern/pkg/settings"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/uptrace/bun"
)

// Deps are the long-lived components the HTTP surface is built over.
type Deps struct {
	Manager  *session.Manager
	Loader   session.Loader
	Unpack   *unpack.Cache
	Pages    *pages.Cache
	Settings *settings.Store
}

func New(cfg *config.Config, db *bun.DB, deps Deps) (*http.Server, error) {
	e, err := newEcho(db, deps)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(db *bun.DB, deps Deps) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	books.RegisterRoutes(e, db)
	chapters.RegisterRoutes(e, db)
	bookmarks.RegisterRoutes(e, db)
	pages.RegisterRoutes(e, db, deps.Pages)
	settings.RegisterRoutes(e, deps.Settings)
	session.RegisterRoutes(e, db, deps.Manager, deps.Loader, deps.Unpack)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
