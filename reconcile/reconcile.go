// Package reconcile merges a home page editor submission into the stored
// home page aggregate.
//
// A submission is a flat, string-keyed form plus uploaded files. Apply turns
// it into a typed tree (Normalize), pairs uploads with asset slots
// (MatchAssets), builds the new aggregate without touching sections the
// caller left out (Merge), saves it once and then removes files that no
// slot references any more.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eringen/campuscms/homecontent"
)

// Editor identifies who is saving. It is passed explicitly by the caller,
// usually from the admin session.
type Editor struct {
	Name     string
	RemoteIP string
}

// Attachment is an uploaded file already spooled to a temporary path.
type Attachment struct {
	// Field is the form field the file was posted under; it follows the
	// same grammar as value keys (bannerSlides[2][image]).
	Field        string
	OriginalName string
	TempPath     string
	Size         int64
}

// Submission is one editor form post.
type Submission struct {
	Values      map[string][]string
	Attachments []Attachment
	// BaseVersion is the aggregate version the editor form was rendered
	// from. Nil skips the check.
	BaseVersion *int64
}

// Value returns the last submitted value of key and whether it was present.
func (s Submission) Value(key string) (string, bool) {
	vs, ok := s.Values[key]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return vs[len(vs)-1], true
}

// ScalarValues returns the last value of every submitted key, used to send a
// failed form back to the editor without losing typed text.
func (s Submission) ScalarValues() map[string]string {
	out := make(map[string]string, len(s.Values))
	for k := range s.Values {
		out[k], _ = s.Value(k)
	}
	return out
}

// Upload describes a file the blob store should adopt.
type Upload struct {
	TempPath     string
	OriginalName string
	// Folder is the directory under homecontent.AssetRoot to store it in.
	Folder string
}

// BlobStore holds the files asset slots point at. Paths are asset
// references such as "/uploads/banners/x.jpg".
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the file. A missing file yields an error wrapping
	// fs.ErrNotExist.
	Delete(ctx context.Context, path string) error
	// WriteUploaded moves an uploaded temp file into storage under a fresh
	// name and returns its reference.
	WriteUploaded(ctx context.Context, up Upload) (string, error)
}

// Copier is implemented by blob stores that can duplicate a stored file.
// Slots that would otherwise share one file get their own copy.
type Copier interface {
	Copy(ctx context.Context, from, to string) error
}

// AggregateStore persists the home page aggregate.
type AggregateStore interface {
	// FindOne returns the stored aggregate, or nil when none was saved yet.
	FindOne(ctx context.Context) (*homecontent.Aggregate, error)
	// Save writes the whole aggregate. The write only succeeds when the
	// stored version still equals agg.Version; on success agg.Version is
	// advanced. A stale version yields ErrVersionConflict.
	Save(ctx context.Context, agg *homecontent.Aggregate) error
}

// ErrVersionConflict is returned when the aggregate changed between load and
// save.
var ErrVersionConflict = errors.New("reconcile: home content was modified concurrently")

// ValidationError reports missing or malformed top-level fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError reports an attachment rejected before anything was stored.
type UploadError struct {
	Field  string
	Reason string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a failure of the aggregate store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s home content: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
