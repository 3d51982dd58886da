package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eringen/campuscms/homecontent"
)

// Engine applies editor submissions to the stored home page aggregate.
// It holds no per-request state and may be shared between requests.
type Engine struct {
	store    AggregateStore
	blobs    BlobStore
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newName  func(folder, ext string) string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger (default: no-op).
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithNameGenerator overrides how fresh asset references are generated.
func WithNameGenerator(fn func(folder, ext string) string) EngineOption {
	return func(e *Engine) { e.newName = fn }
}

// NewEngine builds an Engine over the given stores.
func NewEngine(store AggregateStore, blobs BlobStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		blobs:    blobs,
		log:      zap.NewNop(),
		validate: newValidator(),
		now:      time.Now,
		newName:  NewAssetName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewAssetName returns a collision-resistant asset reference in folder.
func NewAssetName(folder, ext string) string {
	return path.Join(homecontent.AssetRoot, folder, uuid.NewString()+ext)
}

// Result describes a successful Apply.
type Result struct {
	Aggregate homecontent.Aggregate
	Plan      Plan
	// Encodings tells which wire format each submitted section used.
	Encodings map[string]Encoding
	// Deleted counts orphaned files removed; DeleteFailures counts removals
	// that failed for a reason other than the file being gone already.
	Deleted        int
	DeleteFailures int
}

// Load returns the stored aggregate, or the default one when nothing has
// been saved yet.
func (e *Engine) Load(ctx context.Context) (homecontent.Aggregate, error) {
	agg, err := e.store.FindOne(ctx)
	if err != nil {
		return homecontent.Aggregate{}, &PersistenceError{Op: "load", Err: err}
	}
	if agg == nil {
		return homecontent.New(), nil
	}
	return *agg, nil
}

// Apply merges sub into the stored aggregate and saves it once.
//
// On success, files no longer referenced by any slot are deleted, best
// effort. On failure nothing already stored is deleted and files adopted
// from this submission are removed again.
func (e *Engine) Apply(ctx context.Context, editor Editor, sub Submission) (Result, error) {
	log := e.log.With(zap.String("editor", editor.Name))

	existing, err := e.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	if sub.BaseVersion != nil && *sub.BaseVersion != existing.Version {
		log.Info("stale editor form",
			zap.Int64("base", *sub.BaseVersion),
			zap.Int64("version", existing.Version))
		return Result{}, ErrVersionConflict
	}
	if err := e.validateScalars(sub); err != nil {
		return Result{}, err
	}

	n := Normalize(sub.Values, log)

	matched := make(map[string]map[SlotKey]Attachment, len(n.Sections))
	for name, s := range n.Sections {
		m := MatchAssets(s.Spec, sub.Attachments)
		for _, att := range dropUnused(s, m) {
			log.Warn("upload addresses no submitted item, ignoring", zap.String("field", att.Field))
		}
		if err := checkAttachments(s.Spec, m); err != nil {
			return Result{}, err
		}
		matched[name] = m
	}

	verified, err := e.verifyCarried(ctx, existing, n)
	if err != nil {
		return Result{}, err
	}

	var written []string
	cleanup := func() {
		for _, p := range written {
			e.remove(ctx, log, p)
		}
	}

	uploads := make(Uploads, len(matched))
	for name, m := range matched {
		if len(m) == 0 {
			continue
		}
		uploads[name] = make(map[SlotKey]string, len(m))
		spec := n.Sections[name].Spec
		for key, att := range m {
			slot, _ := spec.Slot(key.Slot)
			p, err := e.blobs.WriteUploaded(ctx, Upload{
				TempPath:     att.TempPath,
				OriginalName: att.OriginalName,
				Folder:       slot.Folder,
			})
			if err != nil {
				cleanup()
				var ue *UploadError
				if errors.As(err, &ue) {
					if ue.Field == "" {
						ue.Field = att.Field
					}
					return Result{}, ue
				}
				return Result{}, fmt.Errorf("store upload %s: %w", att.Field, err)
			}
			written = append(written, p)
			uploads[name][key] = p
		}
	}

	copier, canCopy := e.blobs.(Copier)
	merged, plan := Merge(existing, n, uploads, MergeOptions{
		Now:      e.now(),
		NewName:  e.newName,
		Verified: verified,
		CanCopy:  canCopy,
	})

	for _, mv := range plan.Copies {
		if err := copier.Copy(ctx, mv.From, mv.To); err != nil {
			cleanup()
			return Result{}, fmt.Errorf("copy asset %s: %w", mv.From, err)
		}
		written = append(written, mv.To)
	}
	for _, d := range plan.Decisions {
		if d.Action == ActionSanitize && !canCopy {
			log.Warn("asset reference contained form delimiters and was renamed without its file",
				zap.String("section", d.Section), zap.String("from", d.Carried), zap.String("to", d.Path))
		}
	}

	merged.UpdatedAt = e.now().UTC()
	merged.UpdatedBy = editor.Name
	if err := e.store.Save(ctx, &merged); err != nil {
		cleanup()
		if errors.Is(err, ErrVersionConflict) {
			return Result{}, err
		}
		return Result{}, &PersistenceError{Op: "save", Err: err}
	}

	res := Result{
		Aggregate: merged,
		Plan:      plan,
		Encodings: make(map[string]Encoding, len(n.Sections)),
	}
	for name, s := range n.Sections {
		res.Encodings[name] = s.ItemsEncoding
		if s.Spec.Kind == homecontent.Flat {
			res.Encodings[name] = s.FieldsEncoding
		}
	}
	res.Deleted, res.DeleteFailures = e.deleteAll(ctx, log, plan.Deletes)

	log.Info("home content saved",
		zap.Int64("version", merged.Version),
		zap.Int("sections", len(n.Sections)),
		zap.Int("uploads", len(written)),
		zap.Int("deleted", res.Deleted),
		zap.Int("delete_failures", res.DeleteFailures))
	return res, nil
}

// Reset replaces the stored aggregate with the defaults and deletes every
// file the old one referenced.
func (e *Engine) Reset(ctx context.Context, editor Editor) (homecontent.Aggregate, error) {
	existing, err := e.Load(ctx)
	if err != nil {
		return homecontent.Aggregate{}, err
	}
	fresh := homecontent.New()
	fresh.Version = existing.Version
	fresh.UpdatedAt = e.now().UTC()
	fresh.UpdatedBy = editor.Name
	if err := e.store.Save(ctx, &fresh); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return homecontent.Aggregate{}, err
		}
		return homecontent.Aggregate{}, &PersistenceError{Op: "reset", Err: err}
	}
	var paths []string
	for _, ref := range existing.Assets() {
		paths = append(paths, ref.Path)
	}
	log := e.log.With(zap.String("editor", editor.Name))
	deleted, failed := e.deleteAll(ctx, log, paths)
	log.Info("home content reset", zap.Int("deleted", deleted), zap.Int("delete_failures", failed))
	return fresh, nil
}

// verifyCarried asks the blob store about carried-forward paths the section
// did not reference before. Lookup failures count as "not found".
func (e *Engine) verifyCarried(ctx context.Context, existing homecontent.Aggregate, n Normalized) (map[string]bool, error) {
	verified := make(map[string]bool)
	for _, p := range CarriedPaths(existing, n) {
		if !ValidReference(p) {
			continue
		}
		ok, err := e.blobs.Exists(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.Warn("checking carried asset failed", zap.String("path", p), zap.Error(err))
			continue
		}
		verified[p] = ok
	}
	return verified, nil
}

func (e *Engine) deleteAll(ctx context.Context, log *zap.Logger, paths []string) (deleted, failed int) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if e.remove(ctx, log, p) {
			deleted++
		} else {
			failed++
		}
	}
	return deleted, failed
}

// remove deletes one file. A file that is already gone counts as removed;
// any other error is logged and reported as a failure.
func (e *Engine) remove(ctx context.Context, log *zap.Logger, p string) bool {
	err := e.blobs.Delete(ctx, p)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return true
	default:
		log.Error("deleting orphaned asset failed", zap.String("path", p), zap.Error(err))
		return false
	}
}

// scalarInput holds the validated top-level fields of a submission.
type scalarInput struct {
	WelcomeTitle   string `form:"welcomeTitle" validate:"required,max=200"`
	WelcomeContent string `form:"welcomeContent" validate:"max=20000"`
	History        string `form:"history" validate:"max=50000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

func (e *Engine) validateScalars(sub Submission) error {
	var in scalarInput
	in.WelcomeTitle, _ = sub.Value(homecontent.WelcomeTitle)
	in.WelcomeTitle = strings.TrimSpace(in.WelcomeTitle)
	in.WelcomeContent, _ = sub.Value(homecontent.WelcomeContent)
	in.History, _ = sub.Value(homecontent.History)

	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			ve.Fields[fe.Field()] = "is required"
		case "max":
			ve.Fields[fe.Field()] = "must be at most " + fe.Param() + " characters"
		default:
			ve.Fields[fe.Field()] = "is invalid"
		}
	}
	return ve
}
