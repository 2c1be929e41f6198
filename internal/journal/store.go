// Package journal implements the local durable table mapping
// {file-id, relative-path, last-known-hash} described in spec §4.C. It is
// stored as ".sync.db" at the sync root and is the sole writer of its own
// table — only the reconciliation engine touches it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // pure-Go sqlite3 driver, registers "sqlite"
)

// Entry is a journal row: the server id at last successful sync, the
// relative path it was synced to, and the content hash at that time.
type Entry struct {
	ID   string
	Path string
	Hash string
}

// Sentinel errors matching the "ok | duplicate_id" / "ok | not_found"
// contracts of spec §4.C.
var (
	ErrDuplicateID = errors.New("journal: id already present")
	ErrNotFound    = errors.New("journal: entry not found")
)

// Store wraps the sync root's journal database. Opened once per sync root
// selection; the table is created on first open if absent.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the journal database at path and applies
// any pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}

	db.SetMaxOpenConns(1) // sqlite + single-writer reconciler: avoid lock contention

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a new journal entry derived from a synced remote file. Idempotent
// by id: inserting an id that already exists returns ErrDuplicateID and does
// not modify the row.
func (s *Store) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, path, hash) VALUES (?, ?, ?)`,
		e.ID, e.Path, e.Hash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("journal: add %s: %w", e.ID, ErrDuplicateID)
		}

		return fmt.Errorf("journal: add %s: %w", e.ID, err)
	}

	return nil
}

// FindByPath returns the at-most-one entry for a relative path, or
// ErrNotFound if none exists.
func (s *Store) FindByPath(ctx context.Context, relative string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, hash FROM files WHERE path = ?`, relative)

	var e Entry
	if err := row.Scan(&e.ID, &e.Path, &e.Hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}

		return Entry{}, fmt.Errorf("journal: find by path %s: %w", relative, err)
	}

	return e, nil
}

// UpdateHash sets a new hash for an existing id. Returns ErrNotFound if no
// row with that id exists.
func (s *Store) UpdateHash(ctx context.Context, id, newHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET hash = ? WHERE id = ?`, newHash, id)
	if err != nil {
		return fmt.Errorf("journal: update hash %s: %w", id, err)
	}

	return requireAffected(res, id)
}

// Delete removes the entry for id. Returns ErrNotFound if no row existed.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("journal: delete %s: %w", id, err)
	}

	return requireAffected(res, id)
}

// All returns every journal entry, used by the reconciliation pass to
// identify entries whose path was not observed locally or remotely.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, hash FROM files`)
	if err != nil {
		return nil, fmt.Errorf("journal: listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path, &e.Hash); err != nil {
			return nil, fmt.Errorf("journal: scanning entry: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: checking rows affected for %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("journal: %s: %w", id, ErrNotFound)
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint,
// handled this way (rather than a typed sentinel) because modernc.org/sqlite
// surfaces constraint violations as plain *sqlite.Error with a message.
func isUniqueViolation(err error) bool {
	return err != nil && containsUniqueText(err.Error())
}

func containsUniqueText(msg string) bool {
	const marker = "UNIQUE constraint failed"

	return len(msg) >= len(marker) && indexOf(msg, marker) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}

	return -1
}
