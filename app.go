// Package campuscms serves a school web site whose home page is edited as a
// single document: welcome text, banner slides, feature sections and
// several lists with images.
//
// Users may provide their own templ templates via ViewFuncs; missing ones
// fall back to the views package. campuscms handles the handlers,
// middleware, storage, and the reconciliation of editor submissions.
package campuscms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/campuscms/gcsblob"
	"github.com/eringen/campuscms/reconcile"
	"github.com/eringen/campuscms/views"
)

// ViewFuncs holds the templ components the handlers render.
type ViewFuncs struct {
	Home        func(page views.HomePage) templ.Component
	AdminLogin  func(showError bool, csrfToken string) templ.Component
	AdminHome   func(page views.EditorPage) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

func (v *ViewFuncs) setDefaults() {
	if v.Home == nil {
		v.Home = views.Home
	}
	if v.AdminLogin == nil {
		v.AdminLogin = views.AdminLogin
	}
	if v.AdminHome == nil {
		v.AdminHome = views.AdminHome
	}
	if v.NotFound == nil {
		v.NotFound = views.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = views.ServerError
	}
}

// App is the central campuscms application. It wires together the stores,
// the reconciliation engine, the cache, handlers, and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Blobs  reconcile.BlobStore
	Engine *reconcile.Engine
	Cache  *ContentCache
	Views  ViewFuncs
	Log    *zap.Logger

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	closers      []func() error
}

// New creates an App with the given configuration and view functions.
func New(cfg SiteConfig, v ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	v.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  v,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the stores and registers middleware and routes. Start calls
// it; tests call it directly and drive a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}
	if a.Log == nil {
		log, err := NewLogger(a.Config.Env)
		if err != nil {
			return fmt.Errorf("campuscms: init logger: %w", err)
		}
		a.Log = log
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("campuscms: init store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if a.Blobs == nil {
		blobs, err := a.openBlobStore(ctx)
		if err != nil {
			return err
		}
		a.Blobs = blobs
	}

	a.Engine = reconcile.NewEngine(a.Store, a.Blobs, reconcile.WithLogger(a.Log.Named("reconcile")))
	a.Cache = NewContentCache(a.Engine, a.Config.ContentCacheTTL)

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.closers = append(a.closers, func() error {
		a.loginLimiter.Stop()
		return nil
	})

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) openBlobStore(ctx context.Context) (reconcile.BlobStore, error) {
	switch a.Config.BlobBackend {
	case BlobGCS:
		gs, err := gcsblob.New(ctx, a.Config.GCSBucket,
			gcsblob.WithCredentialsFile(a.Config.GCSCredentials),
			gcsblob.WithLogger(a.Log.Named("gcs")))
		if err != nil {
			return nil, fmt.Errorf("campuscms: init gcs: %w", err)
		}
		a.closers = append(a.closers, gs.Close)
		return gs, nil
	default:
		return NewLocalBlobs(a.Config.StaticDir, a.Log.Named("blobs")), nil
	}
}

// Start initializes the app and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	return a.Serve()
}

// Serve listens on the configured address. Init must have been called.
func (a *App) Serve() error {
	a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("blobs", a.Config.BlobBackend))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.Config.StaticDir)
	switch blobs := a.Blobs.(type) {
	case *gcsblob.Store:
		e.GET("/uploads/*", func(c echo.Context) error {
			u, err := blobs.PublicURL(c.Request().URL.Path)
			if err != nil {
				return echo.ErrNotFound
			}
			return c.Redirect(http.StatusFound, u)
		})
	case *LocalBlobs:
		e.Static("/uploads", assetDir(blobs.root))
	}
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/", a.handleHome)
	e.GET("/api/home/", a.handleHomeAPI)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	admin := e.Group("/admin/home", requireAdmin)
	admin.GET("/edit/", a.handleHomeEdit)
	admin.POST("/update/", a.handleHomeUpdate)
	admin.POST("/reset/", a.handleHomeReset)
}

// Close releases the stores. Call it when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}
