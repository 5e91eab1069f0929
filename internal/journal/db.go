// Package journal keeps a SQLite record of sync runs.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB represents a SQLite database connection holding the run journal.
type DB struct {
	path string
	conn *sql.DB
}

// Run is one journal entry.
type Run struct {
	ID            int64     `yaml:"id"`
	Repo          string    `yaml:"repo"`
	DatabaseID    string    `yaml:"database_id"`
	StartedAt     time.Time `yaml:"started_at"`
	FinishedAt    time.Time `yaml:"finished_at"`
	RowsIndexed   int       `yaml:"rows_indexed"`
	IssuesFetched int       `yaml:"issues_fetched"`
	PullRequests  int       `yaml:"pull_requests_skipped"`
	Created       int       `yaml:"created"`
	Updated       int       `yaml:"updated"`
	Error         string    `yaml:"error,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r Run) Succeeded() bool {
	return r.Error == ""
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// createRunsTableSQL defines the schema for the runs table.
const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo TEXT NOT NULL,
    database_id TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    rows_indexed INTEGER DEFAULT 0,
    issues_fetched INTEGER DEFAULT 0,
    pull_requests INTEGER DEFAULT 0,
    created INTEGER DEFAULT 0,
    updated INTEGER DEFAULT 0,
    error TEXT
);
`

const createRunsIndexSQL = `CREATE INDEX IF NOT EXISTS runs_repo_started ON runs(repo, started_at);`

// InitDB creates or opens a SQLite database at the given path and initializes the schema.
func InitDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if _, err := conn.Exec(createRunsTableSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}
	if _, err := conn.Exec(createRunsIndexSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create runs index: %w", err)
	}

	return &DB{
		path: path,
		conn: conn,
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Record appends a run and returns its id.
func (db *DB) Record(run Run) (int64, error) {
	query := `
		INSERT INTO runs (
			repo, database_id, started_at, finished_at, rows_indexed,
			issues_fetched, pull_requests, created, updated, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		run.Repo,
		run.DatabaseID,
		run.StartedAt.UTC().Format(timeLayout),
		sql.NullString{String: run.FinishedAt.UTC().Format(timeLayout), Valid: !run.FinishedAt.IsZero()},
		run.RowsIndexed,
		run.IssuesFetched,
		run.PullRequests,
		run.Created,
		run.Updated,
		sql.NullString{String: run.Error, Valid: run.Error != ""},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs for a repository, newest first. An empty
// repo returns runs of every repository.
func (db *DB) Recent(repo string, limit int) ([]Run, error) {
	query := `
		SELECT id, repo, database_id, started_at, finished_at, rows_indexed,
		       issues_fetched, pull_requests, created, updated, error
		FROM runs
		WHERE (? = '' OR repo = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, repo, repo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRunFrom(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// LastSuccess returns the most recent successful run for a repository, or nil.
func (db *DB) LastSuccess(repo string) (*Run, error) {
	query := `
		SELECT id, repo, database_id, started_at, finished_at, rows_indexed,
		       issues_fetched, pull_requests, created, updated, error
		FROM runs
		WHERE repo = ? AND (error IS NULL OR error = '')
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`

	run, err := scanRunFrom(db.conn.QueryRow(query, repo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// scanner is an interface that both *sql.Row and *sql.Rows implement.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRunFrom scans a row into a Run using the scanner interface.
func scanRunFrom(s scanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt, errText sql.NullString

	err := s.Scan(
		&run.ID,
		&run.Repo,
		&run.DatabaseID,
		&startedAt,
		&finishedAt,
		&run.RowsIndexed,
		&run.IssuesFetched,
		&run.PullRequests,
		&run.Created,
		&run.Updated,
		&errText,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
	}
	run.Error = errText.String

	return &run, nil
}
