package campuscms

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eringen/campuscms/reconcile"
)

// versionField carries the aggregate version the editor form was rendered
// from.
const versionField = "_version"

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// readSubmission collects the editor form into a reconcile.Submission.
// Uploaded parts are copied to temp files; the returned cleanup removes
// them and must be called once the submission has been applied.
func readSubmission(c echo.Context) (reconcile.Submission, func(), error) {
	var sub reconcile.Submission
	noop := func() {}

	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		req := c.Request()
		if err := req.ParseForm(); err != nil {
			return sub, noop, err
		}
		if err := collectValues(&sub, req.PostForm); err != nil {
			return sub, noop, err
		}
		return sub, noop, nil
	}
	if err != nil {
		return sub, noop, err
	}

	var temps []string
	cleanup := func() {
		for _, p := range temps {
			os.Remove(p)
		}
		_ = form.RemoveAll()
	}

	if err := collectValues(&sub, form.Value); err != nil {
		cleanup()
		return sub, noop, err
	}

	// Sorted keys keep "later attachment wins" deterministic across spellings.
	keys := make([]string, 0, len(form.File))
	for k := range form.File {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, fh := range form.File[k] {
			if fh.Filename == "" || fh.Size == 0 {
				continue // empty file input
			}
			if fh.Size > maxUploadSize {
				cleanup()
				return sub, noop, &reconcile.UploadError{Field: k, Reason: "file too large (max 10MB)"}
			}
			p, err := spool(fh)
			if err != nil {
				cleanup()
				return sub, noop, err
			}
			temps = append(temps, p)
			sub.Attachments = append(sub.Attachments, reconcile.Attachment{
				Field:        k,
				OriginalName: fh.Filename,
				TempPath:     p,
				Size:         fh.Size,
			})
		}
	}
	return sub, cleanup, nil
}

// collectValues copies the form values into sub, leaving out the CSRF token
// and lifting the editor's base version out of the field set.
func collectValues(sub *reconcile.Submission, values map[string][]string) error {
	sub.Values = make(map[string][]string, len(values))
	for k, vs := range values {
		switch k {
		case "_csrf":
		case versionField:
			if len(vs) == 0 || vs[len(vs)-1] == "" {
				continue
			}
			v, err := strconv.ParseInt(vs[len(vs)-1], 10, 64)
			if err != nil || v < 0 {
				return &reconcile.ValidationError{Fields: map[string]string{versionField: "must be a version number"}}
			}
			sub.BaseVersion = &v
		default:
			sub.Values[k] = vs
		}
	}
	return nil
}

// spool copies an uploaded part to a temp file and returns its path.
func spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	dst, err := os.CreateTemp("", "campuscms-upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
