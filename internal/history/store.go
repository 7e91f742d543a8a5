package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shelver/internal/classifier"
)

// Source names where a result came from.
const (
	SourceWatcher = "watcher"
	SourceSweep   = "sweep"
)

// Entry is one recorded classification result.
type Entry struct {
	ID          int64
	RecordedAt  time.Time
	Source      string
	Outcome     string
	Path        string
	Category    string
	FinalName   string
	Destination string
	Error       string
	RunID       string
}

// Summary aggregates recorded outcomes.
type Summary struct {
	Total      int
	ByOutcome  map[string]int
	ByCategory map[string]int
	Since      time.Time
}

// EntryFromResult converts a classification result. source is SourceWatcher
// or SourceSweep.
func EntryFromResult(result classifier.Result, source string) Entry {
	entry := Entry{
		RecordedAt:  time.Now().UTC(),
		Source:      source,
		Outcome:     result.Outcome.String(),
		Path:        result.Source,
		Category:    result.Category,
		FinalName:   result.FinalName,
		Destination: result.Destination,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	return entry
}

// Store persists entries in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts entry and returns its id.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO moves (recorded_at, source, outcome, path, category, final_name, destination, error, run_id)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		entry.Source,
		entry.Outcome,
		entry.Path,
		nullableString(entry.Category),
		nullableString(entry.FinalName),
		nullableString(entry.Destination),
		nullableString(entry.Error),
		nullableString(entry.RunID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history entry id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, source, outcome, path, category, final_name, destination, error, run_id
         FROM moves ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Summary counts entries per outcome and, for moved files, per category.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	summary := Summary{ByOutcome: map[string]int{}, ByCategory: map[string]int{}}

	var since sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1), MIN(recorded_at) FROM moves").Scan(&summary.Total, &since); err != nil {
		return summary, fmt.Errorf("count history: %w", err)
	}
	if since.Valid {
		summary.Since, _ = time.Parse(time.RFC3339Nano, since.String)
	}

	if err := s.groupCount(ctx, "SELECT outcome, COUNT(1) FROM moves GROUP BY outcome", summary.ByOutcome); err != nil {
		return summary, err
	}
	err := s.groupCount(ctx,
		"SELECT category, COUNT(1) FROM moves WHERE outcome = ? GROUP BY category",
		summary.ByCategory, classifier.Moved.String())
	return summary, err
}

func (s *Store) groupCount(ctx context.Context, query string, into map[string]int, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("summarize history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key sql.NullString
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan history summary: %w", err)
		}
		into[key.String] = count
	}
	return rows.Err()
}

// Prune deletes entries recorded before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM moves WHERE recorded_at < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry                                   Entry
		recordedAt                              string
		category, finalName, dest, errText, run sql.NullString
	)
	if err := rows.Scan(&entry.ID, &recordedAt, &entry.Source, &entry.Outcome, &entry.Path,
		&category, &finalName, &dest, &errText, &run); err != nil {
		return Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	entry.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
	entry.Category = category.String
	entry.FinalName = finalName.String
	entry.Destination = dest.String
	entry.Error = errText.String
	entry.RunID = run.String
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
