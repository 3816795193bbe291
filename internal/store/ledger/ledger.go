package ledger

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Run states.
const (
	StateRunning = "running"
	StateSuccess = "success"
	StateNoMatch = "no_match"
	StateFailed  = "failed"
)

// DB is a SQLite ledger of job runs and per-user fetches.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection.
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
	  id TEXT PRIMARY KEY,
	  query_hash TEXT NOT NULL,
	  input_uri TEXT NOT NULL,
	  output_uri TEXT NOT NULL,
	  state TEXT NOT NULL,
	  users INTEGER NOT NULL DEFAULT 0,
	  records INTEGER NOT NULL DEFAULT 0,
	  api_errors INTEGER NOT NULL DEFAULT 0,
	  error TEXT,
	  started_at INTEGER NOT NULL,
	  finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE TABLE IF NOT EXISTS fetches (
	  run_id TEXT NOT NULL,
	  user_id INTEGER NOT NULL,
	  posts INTEGER NOT NULL,
	  api_errors INTEGER NOT NULL,
	  location TEXT NOT NULL,
	  fetched_at INTEGER NOT NULL,
	  PRIMARY KEY (run_id, user_id)
	);
	`)
	return err
}

// Run is one recorded job run.
type Run struct {
	ID         string
	QueryHash  string
	InputURI   string
	OutputURI  string
	State      string
	Users      int
	Records    int
	APIErrors  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Fetch is one user's staged fetch within a run.
type Fetch struct {
	RunID     string
	UserID    int64
	Posts     int
	APIErrors int
	Location  string
	FetchedAt time.Time
}

// StartRun records a run in the running state.
func (d *DB) StartRun(ctx context.Context, id, queryHash, inputURI, outputURI string, at time.Time) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO runs(id, query_hash, input_uri, output_uri, state, started_at) VALUES(?,?,?,?,?,?)`,
		id, queryHash, inputURI, outputURI, StateRunning, at.UnixMilli())
	return err
}

// RecordFetch stores one user's fetch result; re-recording a user replaces it.
func (d *DB) RecordFetch(ctx context.Context, f Fetch) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO fetches(run_id, user_id, posts, api_errors, location, fetched_at) VALUES(?,?,?,?,?,?)
	ON CONFLICT(run_id, user_id) DO UPDATE SET posts=excluded.posts, api_errors=excluded.api_errors, location=excluded.location, fetched_at=excluded.fetched_at`,
		f.RunID, f.UserID, f.Posts, f.APIErrors, f.Location, f.FetchedAt.UnixMilli())
	return err
}

// FinishRun sets the terminal state and totals of a run.
func (d *DB) FinishRun(ctx context.Context, r Run) error {
	var errText *string
	if r.Error != "" {
		errText = &r.Error
	}
	_, err := d.sql.ExecContext(ctx, `UPDATE runs SET state=?, users=?, records=?, api_errors=?, error=?, finished_at=? WHERE id=?`,
		r.State, r.Users, r.Records, r.APIErrors, errText, r.FinishedAt.UnixMilli(), r.ID)
	return err
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, query_hash, input_uri, output_uri, state, users, records, api_errors, COALESCE(error, ''), started_at, COALESCE(finished_at, 0)
	FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.QueryHash, &r.InputURI, &r.OutputURI, &r.State, &r.Users, &r.Records, &r.APIErrors, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunFetches returns the per-user fetches of a run ordered by user id.
func (d *DB) RunFetches(ctx context.Context, runID string) ([]Fetch, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT run_id, user_id, posts, api_errors, location, fetched_at FROM fetches WHERE run_id=? ORDER BY user_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Fetch
	for rows.Next() {
		var f Fetch
		var ts int64
		if err := rows.Scan(&f.RunID, &f.UserID, &f.Posts, &f.APIErrors, &f.Location, &ts); err != nil {
			return nil, err
		}
		f.FetchedAt = time.UnixMilli(ts).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
