package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists component records in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath.
// It enables WAL mode for concurrency and durability.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// A single connection serializes writers; PRAGMAs below apply to it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, clock: time.Now}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// SetClock overrides the time source used for bookkeeping timestamps.
func (s *SQLiteStore) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	// Modelled fields are columns; custom passthrough fields live in extra.
	query := `
	CREATE TABLE IF NOT EXISTS components (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		extra JSON NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_components_url ON components(url);

	CREATE INDEX IF NOT EXISTS idx_components_updated_at ON components(updated_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create components table: %w", err)
	}

	return nil
}

const selectColumns = `SELECT id, url, data, created_at, updated_at, extra FROM components`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var extra string
	if err := row.Scan(&rec.ID, &rec.URL, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt, &extra); err != nil {
		return nil, err
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &rec.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra fields of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetByURL(ctx context.Context, url string) (*Record, error) {
	if url == "" {
		return nil, nil
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		selectColumns+` WHERE url = ? ORDER BY updated_at DESC, id ASC LIMIT 1`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component by url %s: %w", url, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM components WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check url %s: %w", url, err)
	}
	return n > 0, nil
}

// Save merges rec over the existing row inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanRecord(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, rec.ID))
	if errors.Is(err, sql.ErrNoRows) {
		existing = nil
	} else if err != nil {
		return fmt.Errorf("failed to read component %s: %w", rec.ID, err)
	}

	merged := Merge(existing, rec, s.clock())
	extra := []byte("{}")
	if len(merged.Extra) > 0 {
		if extra, err = json.Marshal(merged.Extra); err != nil {
			return fmt.Errorf("failed to encode extra fields of %s: %w", rec.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO components (id, url, data, created_at, updated_at, extra)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			data = excluded.data,
			updated_at = excluded.updated_at,
			extra = excluded.extra
	`, merged.ID, merged.URL, merged.Data, merged.CreatedAt, merged.UpdatedAt, string(extra))
	if err != nil {
		return fmt.Errorf("failed to save component %s: %w", rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit component %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` ORDER BY updated_at DESC, id ASC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate components: %w", err)
	}
	return out, nil
}
