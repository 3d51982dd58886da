package campuscms

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/campuscms/homecontent"
	"github.com/eringen/campuscms/reconcile"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 82
	maxUploadSize = 10 << 20 // 10MB
)

// LocalBlobs stores uploaded assets on the local filesystem. A reference
// such as "/uploads/banners/x.jpg" lives at <root>/uploads/banners/x.jpg, so
// the root directory can be served as static files.
type LocalBlobs struct {
	root    string
	log     *zap.Logger
	newName func(folder, ext string) string
}

var (
	_ reconcile.BlobStore = (*LocalBlobs)(nil)
	_ reconcile.Copier    = (*LocalBlobs)(nil)
)

// NewLocalBlobs returns a blob store rooted at dir.
func NewLocalBlobs(dir string, log *zap.Logger) *LocalBlobs {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalBlobs{root: dir, log: log, newName: reconcile.NewAssetName}
}

// resolve maps an asset reference to a file path, refusing anything outside
// the asset root. Legacy names with form delimiters resolve so they can be
// read and deleted; write refuses them.
func (b *LocalBlobs) resolve(ref string) (string, error) {
	if !reconcile.StoredReference(ref) {
		return "", fmt.Errorf("invalid asset reference %q", ref)
	}
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(ref, "/"))), nil
}

// Exists reports whether the referenced file is present.
func (b *LocalBlobs) Exists(_ context.Context, ref string) (bool, error) {
	p, err := b.resolve(ref)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(p)
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the referenced file. The returned error wraps
// fs.ErrNotExist when the file is already gone.
func (b *LocalBlobs) Delete(_ context.Context, ref string) error {
	p, err := b.resolve(ref)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// WriteUploaded moves an uploaded temp file into storage. Wide raster
// images are scaled down to maxImageWidth and re-encoded as JPEG; other
// files are copied unchanged.
func (b *LocalBlobs) WriteUploaded(_ context.Context, up reconcile.Upload) (string, error) {
	src, err := os.Open(up.TempPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() > maxUploadSize {
		return "", &reconcile.UploadError{Reason: "file too large (max 10MB)"}
	}

	ext := strings.ToLower(path.Ext(up.OriginalName))
	var body io.Reader = src
	if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
		data, resized, err := processImage(src)
		if err != nil {
			return "", &reconcile.UploadError{Reason: "invalid image: " + err.Error()}
		}
		if resized {
			ext = ".jpg"
			body = bytes.NewReader(data)
		} else if _, err := src.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}

	ref := b.newName(up.Folder, ext)
	if err := b.write(ref, body); err != nil {
		return "", err
	}
	b.log.Debug("stored upload",
		zap.String("path", ref),
		zap.String("original", up.OriginalName))
	return ref, nil
}

// Copy duplicates the file at from under the reference to.
func (b *LocalBlobs) Copy(_ context.Context, from, to string) error {
	p, err := b.resolve(from)
	if err != nil {
		return err
	}
	src, err := os.Open(p)
	if err != nil {
		return err
	}
	defer src.Close()
	return b.write(to, src)
}

// write stores r at ref through a temp file and rename, so readers never
// see a partial file.
func (b *LocalBlobs) write(ref string, r io.Reader) error {
	if !reconcile.ValidReference(ref) {
		return fmt.Errorf("invalid asset destination %q", ref)
	}
	dst, err := b.resolve(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// processImage decodes an image and, when it is wider than maxImageWidth,
// scales it down and encodes it as JPEG. resized is false when the original
// bytes can be kept.
func processImage(src io.Reader) (data []byte, resized bool, err error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxImageWidth {
		return nil, false, nil
	}

	newH := h * maxImageWidth / w
	dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), true, nil
}

// assetDir returns the directory holding all uploads under root.
func assetDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(strings.Trim(homecontent.AssetRoot, "/")))
}
