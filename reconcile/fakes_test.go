package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/eringen/campuscms/homecontent"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// memBlobs is an in-memory BlobStore and Copier.
type memBlobs struct {
	mu        sync.Mutex
	files     map[string]bool
	deleted   []string
	copies    []Move
	deleteErr map[string]error
	writeErr  error
	seq       int
}

func newMemBlobs(paths ...string) *memBlobs {
	b := &memBlobs{files: make(map[string]bool), deleteErr: make(map[string]error)}
	for _, p := range paths {
		b.files[p] = true
	}
	return b
}

func (b *memBlobs) Exists(_ context.Context, p string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[p], nil
}

func (b *memBlobs) Delete(_ context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.deleteErr[p]; err != nil {
		return err
	}
	if !b.files[p] {
		return fmt.Errorf("delete %s: %w", p, fs.ErrNotExist)
	}
	delete(b.files, p)
	b.deleted = append(b.deleted, p)
	return nil
}

func (b *memBlobs) WriteUploaded(_ context.Context, up Upload) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return "", b.writeErr
	}
	b.seq++
	p := fmt.Sprintf("%s%s/upload-%d%s", homecontent.AssetRoot, up.Folder, b.seq, strings.ToLower(path.Ext(up.OriginalName)))
	b.files[p] = true
	return p, nil
}

func (b *memBlobs) Copy(_ context.Context, from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.files[from] {
		return fmt.Errorf("copy %s: %w", from, fs.ErrNotExist)
	}
	b.files[to] = true
	b.copies = append(b.copies, Move{From: from, To: to})
	return nil
}

func (b *memBlobs) has(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[p]
}

// plainBlobs hides the Copy method of a memBlobs.
type plainBlobs struct{ b *memBlobs }

func (p plainBlobs) Exists(ctx context.Context, path string) (bool, error) {
	return p.b.Exists(ctx, path)
}
func (p plainBlobs) Delete(ctx context.Context, path string) error { return p.b.Delete(ctx, path) }
func (p plainBlobs) WriteUploaded(ctx context.Context, up Upload) (string, error) {
	return p.b.WriteUploaded(ctx, up)
}

// memStore is an in-memory AggregateStore with a version check.
type memStore struct {
	mu      sync.Mutex
	agg     *homecontent.Aggregate
	saves   int
	saveErr error
	// beforeSave runs once, outside the lock, before the next Save.
	beforeSave func()
}

func newMemStore(agg *homecontent.Aggregate) *memStore {
	s := &memStore{}
	if agg != nil {
		c := agg.Clone()
		s.agg = &c
	}
	return s
}

func (s *memStore) FindOne(context.Context) (*homecontent.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agg == nil {
		return nil, nil
	}
	c := s.agg.Clone()
	return &c, nil
}

func (s *memStore) Save(_ context.Context, agg *homecontent.Aggregate) error {
	if hook := s.beforeSave; hook != nil {
		s.beforeSave = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	var current int64
	if s.agg != nil {
		current = s.agg.Version
	}
	if current != agg.Version {
		return ErrVersionConflict
	}
	agg.Version++
	c := agg.Clone()
	s.agg = &c
	s.saves++
	return nil
}

func (s *memStore) stored() homecontent.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Clone()
}

// seqNames returns a deterministic name generator.
func seqNames() func(folder, ext string) string {
	n := 0
	return func(folder, ext string) string {
		n++
		return fmt.Sprintf("%s%s/fresh-%d%s", homecontent.AssetRoot, folder, n, ext)
	}
}

func newTestEngine(store AggregateStore, blobs BlobStore) *Engine {
	return NewEngine(store, blobs,
		WithClock(func() time.Time { return testNow }),
		WithNameGenerator(seqNames()))
}

// form builds submission values from key, value pairs.
func form(kv ...string) map[string][]string {
	v := make(map[string][]string)
	for i := 0; i+1 < len(kv); i += 2 {
		v[kv[i]] = append(v[kv[i]], kv[i+1])
	}
	return v
}

// seeded returns a populated aggregate and the files it references.
func seeded() (homecontent.Aggregate, []string) {
	a := homecontent.New()
	a.Version = 3
	a.WelcomeContent = "Hello"
	a.Sections["bannerSlides"] = homecontent.Section{
		Fields: map[string]string{},
		Active: true,
		Items: []homecontent.Item{
			{
				Fields: map[string]string{"title": "Open day", "contentType": "image"},
				Order:  0,
				Active: true,
				Assets: map[string]string{"image": "/uploads/banners/open.jpg", "video": ""},
			},
		},
	}
	a.Sections["ourSociety"] = homecontent.Section{
		Fields: map[string]string{"title": "Our Society", "content": "About us"},
		Active: true,
		Assets: map[string]string{"image": "/uploads/sections/society.jpg"},
	}
	a.Sections["infrastructure"] = homecontent.Section{
		Fields: map[string]string{"title": "Infrastructure", "subtitle": "Our Facilities", "content": ""},
		Active: true,
		Items: []homecontent.Item{
			{Fields: map[string]string{"title": "Lab"}, Order: 0, Active: true, Assets: map[string]string{"image": "/uploads/infrastructure/lab.jpg"}},
			{Fields: map[string]string{"title": "Library"}, Order: 1, Active: true, Assets: map[string]string{"image": "/uploads/infrastructure/library.jpg"}},
		},
	}
	a.Sections["recentAnnouncements"] = homecontent.Section{
		Fields: map[string]string{"title": "Recent Announcements", "subtitle": "Stay Updated"},
		Active: true,
		Items: []homecontent.Item{
			{Fields: map[string]string{"title": "A", "content": "", "date": "2026-01-10"}, Order: 0, Active: true},
		},
	}
	var files []string
	for _, ref := range a.Assets() {
		files = append(files, ref.Path)
	}
	return a, files
}
