package campuscms

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/campuscms/reconcile"
	"github.com/eringen/campuscms/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return c.Redirect(http.StatusSeeOther, "/admin/home/edit/")
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	user := c.FormValue("username")
	pass := c.FormValue("password")
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Config.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1
	if userOK && passOK {
		a.loginLimiter.Reset(ip)
		if err := setAdminSession(c, a.Config.AdminUser); err != nil {
			return err
		}
		a.Log.Info("admin signed in", zap.String("user", user), zap.String("ip", ip))
		return c.Redirect(http.StatusSeeOther, "/admin/home/edit/")
	}
	a.loginLimiter.Record(ip)
	a.Log.Warn("admin sign-in failed", zap.String("ip", ip))
	return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleHomeEdit(c echo.Context) error {
	content, err := a.Engine.Load(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminHome(a.editorPage(c, views.EditorPage{
		Content: content,
		Message: c.QueryParam("msg"),
	})))
}

// handleHomeUpdate applies one editor submission. Success redirects back to
// the editor; failure re-renders it with the submitted values, or answers
// with JSON when the client asked for it.
func (a *App) handleHomeUpdate(c echo.Context) error {
	sub, cleanup, err := readSubmission(c)
	defer cleanup()
	if err != nil {
		return a.updateFailed(c, sub, err)
	}

	res, err := a.Engine.Apply(c.Request().Context(), CurrentEditor(c), sub)
	if err != nil {
		return a.updateFailed(c, sub, err)
	}
	a.Cache.Invalidate()

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]any{
			"version":        res.Aggregate.Version,
			"deleted":        res.Deleted,
			"deleteFailures": res.DeleteFailures,
		})
	}
	return c.Redirect(http.StatusSeeOther, "/admin/home/edit/?msg=saved")
}

func (a *App) updateFailed(c echo.Context, sub reconcile.Submission, err error) error {
	code, msg := http.StatusInternalServerError, "The home page could not be saved. Please try again."
	var fields map[string]string

	var ve *reconcile.ValidationError
	var ue *reconcile.UploadError
	switch {
	case errors.As(err, &ve):
		code, msg, fields = http.StatusBadRequest, "Please fix the highlighted fields.", ve.Fields
	case errors.As(err, &ue):
		code, msg = http.StatusBadRequest, ue.Error()
	case errors.Is(err, reconcile.ErrVersionConflict):
		code, msg = http.StatusConflict, "The home page was changed by someone else while you were editing. Your changes were not saved; review them and save again."
	case errors.Is(err, http.ErrMissingBoundary), errors.Is(err, http.ErrNotMultipart):
		code, msg = http.StatusBadRequest, "Malformed form submission."
	}
	if code >= 500 {
		a.Log.Error("home update failed", zap.String("editor", sessionEditor(c)), zap.Error(err))
	} else {
		a.Log.Info("home update rejected", zap.String("editor", sessionEditor(c)), zap.Int("status", code), zap.Error(err))
	}

	values := sub.ScalarValues()
	if wantsJSON(c) {
		return c.JSON(code, map[string]any{
			"error":  msg,
			"fields": fields,
			"values": values,
		})
	}

	content, lerr := a.Engine.Load(c.Request().Context())
	if lerr != nil {
		return lerr
	}
	return RenderStatus(c, code, a.Views.AdminHome(a.editorPage(c, views.EditorPage{
		Content:     content,
		Error:       msg,
		FieldErrors: fields,
		Values:      values,
	})))
}

func (a *App) handleHomeReset(c echo.Context) error {
	if _, err := a.Engine.Reset(c.Request().Context(), CurrentEditor(c)); err != nil {
		if errors.Is(err, reconcile.ErrVersionConflict) {
			return echo.NewHTTPError(http.StatusConflict, "home content changed concurrently")
		}
		return err
	}
	a.Cache.Invalidate()
	return c.Redirect(http.StatusSeeOther, "/admin/home/edit/?msg=reset")
}

func (a *App) editorPage(c echo.Context, p views.EditorPage) views.EditorPage {
	p.Site = a.site()
	p.CSRFToken = CsrfToken(c)
	p.Editor = sessionEditor(c)
	return p
}

func (a *App) site() views.Site {
	return views.Site{Name: a.Config.Name, URL: a.Config.URL}
}
