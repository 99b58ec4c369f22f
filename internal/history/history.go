package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fdep/internal/security"
	"fdep/pkg/fileutil"
)

// History stores task runs in SQLite.
type History struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*History, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && !fileutil.DirExists(dir) {
		if err := security.CreateSecureDir(dir, security.PermDirectory); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if dbPath != ":memory:" {
		if err := os.Chmod(dbPath, security.PermDBFile); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set database permissions: %w", err)
		}
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target TEXT NOT NULL,
			operation TEXT NOT NULL,
			hosts TEXT NOT NULL,
			branch TEXT NOT NULL,
			revision TEXT,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_target_id
		ON runs(target, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Record stores a run. A zero StartedAt is set to now.
func (h *History) Record(ctx context.Context, record *Record) (int64, error) {
	started := record.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	var completedAt *string
	if record.CompletedAt != nil {
		formatted := record.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &formatted
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO runs
		(target, operation, hosts, branch, revision, status, started_at,
		 completed_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Target,
		record.Operation,
		record.Hosts,
		record.Branch,
		record.Revision,
		record.Status,
		started.UTC().Format(time.RFC3339),
		completedAt,
		record.DurationSeconds,
		record.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

const selectColumns = `id, target, operation, hosts, branch, revision, status,
		started_at, completed_at, duration_seconds, error_message`

// Latest returns the most recent run for a target, or nil.
func (h *History) Latest(ctx context.Context, target string) (*Record, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM runs
		WHERE target = ?
		ORDER BY id DESC
		LIMIT 1
	`, target)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	return record, nil
}

// Recent returns up to limit runs for a target, newest first. An empty
// target returns runs of every target.
func (h *History) Recent(ctx context.Context, target string, limit int) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if target == "" {
		rows, err = h.db.QueryContext(ctx, `
			SELECT `+selectColumns+`
			FROM runs
			ORDER BY id DESC
			LIMIT ?
		`, limit)
	} else {
		rows, err = h.db.QueryContext(ctx, `
			SELECT `+selectColumns+`
			FROM runs
			WHERE target = ?
			ORDER BY id DESC
			LIMIT ?
		`, target, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Status returns the latest run and the recent history of a target.
func (h *History) Status(ctx context.Context, target string, limit int) (*TargetStatus, error) {
	latest, err := h.Latest(ctx, target)
	if err != nil {
		return nil, err
	}
	recent, err := h.Recent(ctx, target, limit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []Record{}
	}
	return &TargetStatus{Target: target, Latest: latest, RecentHistory: recent}, nil
}

// LatestPerTarget returns the latest run of every target seen.
func (h *History) LatestPerTarget(ctx context.Context) (map[string]*Record, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT r1.id, r1.target, r1.operation, r1.hosts, r1.branch, r1.revision,
		       r1.status, r1.started_at, r1.completed_at, r1.duration_seconds,
		       r1.error_message
		FROM runs r1
		INNER JOIN (
			SELECT target, MAX(id) AS max_id
			FROM runs
			GROUP BY target
		) r2
		ON r1.id = r2.max_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets status: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Record)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		result[record.Target] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a database row into a Record
func scanRecord(s scanner) (*Record, error) {
	var record Record
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.Target,
		&record.Operation,
		&record.Hosts,
		&record.Branch,
		&record.Revision,
		&record.Status,
		&startedAtStr,
		&completedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
