package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

const schemaVersion = 2

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite backed settings index.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (or creates) the index at path. An empty path gives an
// in-memory store, used by tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, serrors.StoreError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		if err := validateIntegrity(path); err != nil {
			slog.Warn("settings_index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), rmErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("settings_index_cleared", slog.String("path", path))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, serrors.StoreError("failed to open database", err)
	}

	// Single writer; also keeps the in-memory database alive on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.StoreError("failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, serrors.StoreError("failed to initialize schema", err)
	}
	return s, nil
}

func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS prefs_index (
	doc_id INTEGER NOT NULL,
	locale TEXT NOT NULL,
	rank INTEGER NOT NULL DEFAULT 0,
	data_title TEXT NOT NULL,
	data_title_normalized TEXT NOT NULL DEFAULT '',
	data_summary_on TEXT NOT NULL DEFAULT '',
	data_summary_on_normalized TEXT NOT NULL DEFAULT '',
	data_summary_off TEXT NOT NULL DEFAULT '',
	data_summary_off_normalized TEXT NOT NULL DEFAULT '',
	data_entries TEXT NOT NULL DEFAULT '',
	data_keywords TEXT NOT NULL DEFAULT '',
	data_title_folded TEXT NOT NULL DEFAULT '',
	data_summary_on_folded TEXT NOT NULL DEFAULT '',
	data_summary_off_folded TEXT NOT NULL DEFAULT '',
	data_entries_folded TEXT NOT NULL DEFAULT '',
	data_keywords_folded TEXT NOT NULL DEFAULT '',
	class_name TEXT NOT NULL DEFAULT '',
	child_class_name TEXT NOT NULL DEFAULT '',
	screen_title TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	intent_action TEXT NOT NULL DEFAULT '',
	intent_target_package TEXT NOT NULL DEFAULT '',
	intent_target_class TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	data_key_ref TEXT NOT NULL DEFAULT '',
	user_id INTEGER NOT NULL DEFAULT 0,
	source_id TEXT NOT NULL DEFAULT '',
	payload_type INTEGER NOT NULL DEFAULT 0,
	payload BLOB,
	PRIMARY KEY (doc_id, locale)
);

CREATE INDEX IF NOT EXISTS idx_prefs_enabled ON prefs_index(enabled);
CREATE INDEX IF NOT EXISTS idx_prefs_locale ON prefs_index(locale, enabled);

CREATE TABLE IF NOT EXISTS meta (
	locale TEXT PRIMARY KEY,
	build_fingerprint TEXT NOT NULL,
	source_fingerprint TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS site_map (
	parent_class TEXT NOT NULL,
	parent_title TEXT NOT NULL,
	child_class TEXT NOT NULL,
	child_title TEXT NOT NULL,
	PRIMARY KEY (parent_class, child_class)
);

CREATE TABLE IF NOT EXISTS saved_queries (
	query TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saved_queries_ts ON saved_queries(timestamp);
`

// derivedTables hold everything a pass rebuilds. Saved queries are not
// among them.
var derivedTables = []string{"prefs_index", "meta", "site_map"}

func (s *Store) initSchema() error {
	var version sql.NullInt64
	// Fails on a fresh database, where schema_version does not exist yet.
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err == nil &&
		version.Valid && version.Int64 < schemaVersion {
		for _, table := range derivedTables {
			if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return err
			}
		}
		slog.Info("settings_index_schema_upgraded",
			slog.Int64("from", version.Int64),
			slog.Int("to", schemaVersion))
	}

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// Path returns the database path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

// reader returns the database handle after checking the store is open.
func (s *Store) reader() (*sql.DB, func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, nil, ErrStoreClosed
	}
	return s.db, s.mu.RUnlock, nil
}

// UpsertRow writes a single row outside a bulk update. Rows with an empty
// title are dropped and false is returned.
func (s *Store) UpsertRow(ctx context.Context, row IndexedRow) (bool, error) {
	db, done, err := s.reader()
	if err != nil {
		return false, err
	}
	defer done()
	return upsertRow(ctx, db, row)
}

// SetEnabled flips the enabled bit of every locale's copy of docID.
func (s *Store) SetEnabled(ctx context.Context, docID int64, enabled bool) error {
	db, done, err := s.reader()
	if err != nil {
		return err
	}
	defer done()
	return setEnabled(ctx, db, docID, enabled)
}

// DropAndRecreate wipes all rows, metadata and the site map. Saved
// queries are user history and survive.
func (s *Store) DropAndRecreate(ctx context.Context) error {
	b, err := s.BeginBulkUpdate(ctx)
	if err != nil {
		return err
	}
	defer b.Rollback()

	if err := b.Reset(ctx); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return err
	}
	slog.Info("settings_index_reset", slog.String("path", s.path))
	return nil
}

// IntegrityCheck runs SQLite's integrity check.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	db, done, err := s.reader()
	if err != nil {
		return err
	}
	defer done()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return serrors.StoreError("integrity check failed", err)
	}
	if result != "ok" {
		return serrors.New(serrors.ErrCodeCorruptIndex, "database corrupted: "+result, nil)
	}
	return nil
}

// Stats returns row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, done, err := s.reader()
	if err != nil {
		return Stats{}, err
	}
	defer done()

	st := Stats{RowsByLocale: make(map[string]int)}
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM prefs_index", &st.Rows},
		{"SELECT COUNT(*) FROM prefs_index WHERE enabled = 1", &st.EnabledRows},
		{"SELECT COUNT(*) FROM site_map", &st.SiteMapEdges},
		{"SELECT COUNT(*) FROM saved_queries", &st.SavedQueries},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT locale, COUNT(*) FROM prefs_index GROUP BY locale")
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count locales: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var locale string
		var n int
		if err := rows.Scan(&locale, &n); err != nil {
			return Stats{}, fmt.Errorf("failed to scan locale count: %w", err)
		}
		st.RowsByLocale[locale] = n
	}
	return st, rows.Err()
}

// Close closes the database. Further calls return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
