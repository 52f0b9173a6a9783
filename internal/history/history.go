// Package history keeps a SQLite log of decoded symbols.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// DefaultLimit is the number of entries Recent returns for a non-positive limit.
const DefaultLimit = 50

// Entry is one decoded symbol.
type Entry struct {
	ID      int64     `json:"id" yaml:"id"`
	Time    time.Time `json:"time" yaml:"time"`
	Origin  string    `json:"origin" yaml:"origin"`
	Source  string    `json:"source" yaml:"source"`
	Type    string    `json:"type" yaml:"type"`
	Value   string    `json:"value" yaml:"value"`
	Charset string    `json:"charset" yaml:"charset"`
	Version int       `json:"version" yaml:"version"`
	ECLevel string    `json:"ec_level" yaml:"ec_level"`
}

// History records scan results to a SQLite database.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the SQLite database at dbPath and ensures the
// scans table exists.
func New(dbPath string) (*History, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	// SQLite allows one writer; queue in the pool rather than on SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scans (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		ts       TEXT    NOT NULL,
		origin   TEXT    NOT NULL,
		source   TEXT    NOT NULL,
		type     TEXT    NOT NULL,
		value    TEXT    NOT NULL,
		charset  TEXT    NOT NULL,
		version  INTEGER NOT NULL,
		ec_level TEXT    NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &History{db: db, now: time.Now}, nil
}

// Record inserts one row per decoded code of res in a single transaction.
// origin names the entry point ("cli", "server", ...). It is safe to call
// concurrently.
func (h *History) Record(ctx context.Context, origin string, res *pipeline.ScanImageResult) error {
	if res == nil || len(res.Codes) == 0 {
		return nil
	}
	ts := h.now().UTC().Format(time.RFC3339Nano)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scans (ts, origin, source, type, value, charset, version, ec_level) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range res.Codes {
		if _, err := stmt.ExecContext(ctx, ts, origin, res.Source, c.Type, c.Value, c.Charset, c.Version, c.ECLevel); err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, ts, origin, source, type, value, charset, version, ec_level FROM scans ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Origin, &e.Source, &e.Type, &e.Value, &e.Charset, &e.Version, &e.ECLevel); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("history: bad timestamp %q: %w", ts, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded entries.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}
