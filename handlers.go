package campuscms

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/campuscms/views"
)

func (a *App) handleHome(c echo.Context) error {
	content, err := a.Cache.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(views.HomePage{
		Site:    a.site(),
		Content: content.Public(),
	}))
}

// handleHomeAPI serves the public home content as JSON for client-side
// renderers.
func (a *App) handleHomeAPI(c echo.Context) error {
	content, err := a.Cache.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, content.Public())
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "robots.txt"))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound && !wantsJSON(c) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		if !wantsJSON(c) {
			_ = RenderStatus(c, code, a.Views.ServerError())
			return
		}
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
