package campuscms

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/campuscms/reconcile"
)

// Blob backends.
const (
	BlobLocal = "local"
	BlobGCS   = "gcs"
)

// SiteConfig holds all configuration for a campuscms site.
type SiteConfig struct {
	Name string `validate:"required"` // Site name (default "Our School")
	URL  string // Canonical URL (default "http://localhost:3000")

	Addr         string `validate:"required"` // Listen address (default ":3000")
	DatabasePath string `validate:"required"` // SQLite path (default "data/campus.db")
	StaticDir    string `validate:"required"` // Public files and local uploads (default "public")

	AdminUser     string `validate:"required"`        // Admin login name (default "admin")
	AdminPassword string `validate:"required,min=8"`  // Required: admin login password
	SessionSecret string `validate:"required,min=16"` // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	BlobBackend    string `validate:"oneof=local gcs"`                // "local" (default) or "gcs"
	GCSBucket      string `validate:"required_if=BlobBackend gcs"`    // Bucket for the gcs backend
	GCSCredentials string // Service account JSON file; empty uses ambient credentials

	Env             string        `validate:"oneof=development production test"` // APP_ENV (default "development")
	ContentCacheTTL time.Duration `validate:"gte=0"`                             // Public page cache TTL (default 1min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Our School"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/campus.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.AdminUser == "" {
		c.AdminUser = "admin"
	}
	if c.BlobBackend == "" {
		c.BlobBackend = BlobLocal
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.ContentCacheTTL == 0 {
		c.ContentCacheTTL = time.Minute
	}
}

// Validate reports missing or inconsistent settings.
func (c SiteConfig) Validate() error {
	err := validator.New().Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("campuscms: invalid config: %s", strings.Join(msgs, ", "))
}

// LoadConfig reads the given .env files (default ".env"; missing files are
// skipped) and then the process environment. Variables already set in the
// environment win over the files.
func LoadConfig(files ...string) (SiteConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SiteConfig{}, fmt.Errorf("campuscms: load %s: %w", f, err)
		}
	}

	cfg := SiteConfig{
		Name:           os.Getenv("SITE_NAME"),
		URL:            os.Getenv("SITE_URL"),
		Addr:           os.Getenv("ADDR"),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		StaticDir:      os.Getenv("STATIC_DIR"),
		AdminUser:      os.Getenv("ADMIN_USER"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		BlobBackend:    os.Getenv("BLOB_BACKEND"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSCredentials: os.Getenv("GCS_CREDENTIALS"),
		Env:            os.Getenv("APP_ENV"),
	}
	var err error
	if cfg.CookieSecure, err = envBool("COOKIE_SECURE"); err != nil {
		return SiteConfig{}, err
	}
	if cfg.ContentCacheTTL, err = envDuration("CONTENT_CACHE_TTL"); err != nil {
		return SiteConfig{}, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("campuscms: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("campuscms: %s: %w", key, err)
	}
	return d, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the application logger (default: built from Config.Env).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithBlobStore replaces the blob store chosen by Config.BlobBackend.
func WithBlobStore(b reconcile.BlobStore) Option {
	return func(a *App) {
		a.Blobs = b
	}
}
