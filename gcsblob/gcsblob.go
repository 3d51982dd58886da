// Package gcsblob stores home page assets in a Google Cloud Storage bucket.
// An asset reference such as "/uploads/banners/x.jpg" maps to the object
// "uploads/banners/x.jpg".
package gcsblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/eringen/campuscms/reconcile"
)

// Store is a reconcile.BlobStore backed by one bucket.
type Store struct {
	client  *storage.Client
	bucket  string
	log     *zap.Logger
	newName func(folder, ext string) string
}

var (
	_ reconcile.BlobStore = (*Store)(nil)
	_ reconcile.Copier    = (*Store)(nil)
)

type config struct {
	credsFile string
	log       *zap.Logger
}

// Option configures New.
type Option func(*config)

// WithCredentialsFile authenticates with a service account key file. An
// empty path uses application default credentials.
func WithCredentialsFile(path string) Option {
	return func(c *config) { c.credsFile = path }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// New opens a client for bucket.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	cfg := config{log: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}
	var copts []option.ClientOption
	if cfg.credsFile != "" {
		copts = append(copts, option.WithCredentialsFile(cfg.credsFile))
	}
	client, err := storage.NewClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("gcsblob: new client: %w", err)
	}
	return &Store{client: client, bucket: bucket, log: cfg.log, newName: reconcile.NewAssetName}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ObjectName maps an asset reference to its object name. Legacy names with
// form delimiters are accepted so they can be read and deleted.
func ObjectName(ref string) (string, error) {
	if !reconcile.StoredReference(ref) {
		return "", fmt.Errorf("gcsblob: invalid asset reference %q", ref)
	}
	return strings.TrimPrefix(ref, "/"), nil
}

// destination returns the handle for a new object; its name must be a
// clean reference.
func (s *Store) destination(ref string) (*storage.ObjectHandle, error) {
	if !reconcile.ValidReference(ref) {
		return nil, fmt.Errorf("gcsblob: invalid asset destination %q", ref)
	}
	return s.object(ref)
}

// PublicURL returns the public address of the referenced object.
func (s *Store) PublicURL(ref string) (string, error) {
	name, err := ObjectName(ref)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + s.bucket + "/" + name}
	return u.String(), nil
}

func (s *Store) object(ref string) (*storage.ObjectHandle, error) {
	name, err := ObjectName(ref)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(s.bucket).Object(name), nil
}

// Exists reports whether the referenced object is present.
func (s *Store) Exists(ctx context.Context, ref string) (bool, error) {
	obj, err := s.object(ref)
	if err != nil {
		return false, nil
	}
	_, err = obj.Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the referenced object. A missing object yields an error
// wrapping fs.ErrNotExist.
func (s *Store) Delete(ctx context.Context, ref string) error {
	obj, err := s.object(ref)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gcsblob: delete %s: %w", ref, fs.ErrNotExist)
		}
		return fmt.Errorf("gcsblob: delete %s: %w", ref, err)
	}
	return nil
}

// WriteUploaded uploads the temp file under a fresh name in up.Folder.
func (s *Store) WriteUploaded(ctx context.Context, up reconcile.Upload) (string, error) {
	src, err := os.Open(up.TempPath)
	if err != nil {
		return "", fmt.Errorf("gcsblob: open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(path.Ext(up.OriginalName))
	ref := s.newName(up.Folder, ext)
	obj, err := s.destination(ref)
	if err != nil {
		return "", err
	}

	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType(ext)
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcsblob: upload %s: %w", ref, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcsblob: upload %s: %w", ref, err)
	}
	s.log.Debug("stored upload", zap.String("path", ref), zap.String("original", up.OriginalName))
	return ref, nil
}

// Copy duplicates the object at from under the reference to.
func (s *Store) Copy(ctx context.Context, from, to string) error {
	src, err := s.object(from)
	if err != nil {
		return err
	}
	dst, err := s.destination(to)
	if err != nil {
		return err
	}
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gcsblob: copy %s: %w", from, fs.ErrNotExist)
		}
		return fmt.Errorf("gcsblob: copy %s: %w", from, err)
	}
	return nil
}

func contentType(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
