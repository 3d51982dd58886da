package campuscms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/campuscms/homecontent"
	"github.com/eringen/campuscms/reconcile"
)

const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Store keeps the home page aggregate as a single JSON document in SQLite.
type Store struct {
	db *sql.DB
}

var _ reconcile.AggregateStore = (*Store)(nil)

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// The pragmas go in the DSN so every pooled connection gets them. WAL
	// lets the public page read while an editor saves; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS home_content (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    version INTEGER NOT NULL,
    document TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    updated_by TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

// FindOne returns the stored aggregate, or nil when nothing was saved yet.
func (s *Store) FindOne(ctx context.Context) (*homecontent.Aggregate, error) {
	var version int64
	var doc, updatedAt, updatedBy string
	err := s.db.QueryRowContext(ctx,
		`SELECT version, document, updated_at, updated_by FROM home_content WHERE id = 1`).
		Scan(&version, &doc, &updatedAt, &updatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var agg homecontent.Aggregate
	if err := json.Unmarshal([]byte(doc), &agg); err != nil {
		return nil, fmt.Errorf("decode home content: %w", err)
	}
	agg.Version = version
	agg.UpdatedBy = updatedBy
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		agg.UpdatedAt = t
	}
	return &agg, nil
}

// Save writes agg if the stored version still equals agg.Version, then
// advances agg.Version. Version 0 means "nothing stored yet".
func (s *Store) Save(ctx context.Context, agg *homecontent.Aggregate) error {
	next := *agg
	next.Version = agg.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode home content: %w", err)
	}
	updatedAt := agg.UpdatedAt.UTC().Format(time.RFC3339Nano)

	var res sql.Result
	if agg.Version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO home_content (id, version, document, updated_at, updated_by) VALUES (1, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			next.Version, string(doc), updatedAt, agg.UpdatedBy)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE home_content SET version = ?, document = ?, updated_at = ?, updated_by = ? WHERE id = 1 AND version = ?`,
			next.Version, string(doc), updatedAt, agg.UpdatedBy, agg.Version)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return reconcile.ErrVersionConflict
	}
	agg.Version = next.Version
	return nil
}
