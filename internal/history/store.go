// Package history keeps a SQLite record of finished archive builds.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

// Entry is one recorded build.
type Entry struct {
	ID         string
	Title      string
	FileName   string
	Location   string
	Tier       string
	Total      int
	Retrieved  int
	Missing    []int
	Size       int64
	Status     download.Status
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the build took.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store persists build results. It implements download.Recorder.
type Store struct {
	db *sql.DB
}

var _ download.Recorder = (*Store)(nil)

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	tier        TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL,
	retrieved   INTEGER NOT NULL,
	missing     TEXT NOT NULL DEFAULT '',
	size_bytes  INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

// Record stores a finished build. Recording the same ID twice replaces the
// earlier row.
func (s *Store) Record(ctx context.Context, result *download.Result) error {
	tier := ""
	if result.Tier != model.TierUnknown {
		tier = result.Tier.String()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
	(id, title, file_name, location, tier, total, retrieved, missing, size_bytes, status, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.Title,
		result.FileName,
		result.Location,
		tier,
		result.Total,
		result.Retrieved,
		joinPages(result.Missing),
		result.Size,
		string(result.Status),
		result.Error,
		formatTime(result.StartedAt),
		formatTime(result.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", result.ID, err)
	}
	return nil
}

// List returns up to limit builds, most recent first. A limit <= 0 returns
// every build.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
SELECT id, title, file_name, location, tier, total, retrieved, missing, size_bytes, status, error, started_at, finished_at
FROM runs
ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			missing, status   string
			started, finished string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.FileName, &e.Location, &e.Tier, &e.Total, &e.Retrieved,
			&missing, &e.Size, &status, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Status = download.Status(status)
		if e.Missing, err = splitPages(missing); err != nil {
			return nil, fmt.Errorf("run %s: %w", e.ID, err)
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %s: %w", e.ID, err)
		}
		if e.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func splitPages(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	pages := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid missing page %q", part)
		}
		pages[i] = n
	}
	return pages, nil
}
