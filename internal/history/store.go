// Package history persists an append-only audit log of pipeline runs
// and node executions, distinct from the in-memory bounded resource
// pool in internal/resource — that pool is a cache for recent versions,
// this store is a durable record of what ran and when. Grounded on the
// teacher's internal/scheduler/store.go schema-migration and
// prepared-statement idioms.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one pipeline start-to-stop lifetime.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	NodeCount int
	Status    string // "running", "stopped", "error"
}

// NodeExecution is one tick of one node within a Run.
type NodeExecution struct {
	ID        string
	RunID     string
	NodeIndex int
	NodeID    string
	NodeName  string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string // "ok", "error"
	Error     string
}

// Store wraps an already-open database/sql handle. Store never opens
// its own connection or registers a driver: the caller does that, so
// production code blank-imports "github.com/mattn/go-sqlite3" and
// opens "sqlite3", while package tests blank-import "modernc.org/sqlite"
// and open "sqlite" — neither this file nor its tests need a cgo
// toolchain to build the other's path, following the teacher's
// anticipation.Store/NewStore(db) split.
type Store struct {
	db *sql.DB
}

// New wraps db and applies the schema migration.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		node_count INTEGER NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_executions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		node_index INTEGER NOT NULL,
		node_id TEXT NOT NULL,
		node_name TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		status TEXT NOT NULL,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_node_executions_run_id ON node_executions(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// newID generates a UUIDv7, falling back to v4 if the clock-based
// generator fails (mirrors the teacher's scheduler.NewID).
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// StartRun inserts a new run row in "running" status and returns its ID.
func (s *Store) StartRun(nodeCount int) (string, error) {
	id := newID()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, node_count, status) VALUES (?, ?, ?, ?)`,
		id, time.Now().Format(time.RFC3339Nano), nodeCount, "running",
	)
	if err != nil {
		return "", fmt.Errorf("history: start run: %w", err)
	}
	return id, nil
}

// EndRun marks runID ended with the given terminal status ("stopped" or
// "error").
func (s *Store) EndRun(runID, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET ended_at = ?, status = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), status, runID,
	)
	if err != nil {
		return fmt.Errorf("history: end run: %w", err)
	}
	return nil
}

// RecordNodeExecution inserts one completed tick. errMsg is empty for
// a successful tick.
func (s *Store) RecordNodeExecution(runID string, nodeIndex int, nodeID, nodeName string, started, ended time.Time, errMsg string) error {
	status := "ok"
	var errCol sql.NullString
	if errMsg != "" {
		status = "error"
		errCol = sql.NullString{String: errMsg, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO node_executions (id, run_id, node_index, node_id, node_name, started_at, ended_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), runID, nodeIndex, nodeID, nodeName,
		started.Format(time.RFC3339Nano), ended.Format(time.RFC3339Nano), status, errCol,
	)
	if err != nil {
		return fmt.Errorf("history: record node execution: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, bounded by limit
// (a non-positive limit defaults to 100).
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, node_count, status FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListNodeExecutions returns every recorded tick for runID in
// chronological order.
func (s *Store) ListNodeExecutions(runID string) ([]NodeExecution, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, node_index, node_id, node_name, started_at, ended_at, status, error
		 FROM node_executions WHERE run_id = ? ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list node executions: %w", err)
	}
	defer rows.Close()

	var out []NodeExecution
	for rows.Next() {
		e, err := scanNodeExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var startedAt string
	var endedAt sql.NullString
	if err := rows.Scan(&r.ID, &startedAt, &endedAt, &r.NodeCount, &r.Status); err != nil {
		return Run{}, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, endedAt.String)
		r.EndedAt = &t
	}
	return r, nil
}

func scanNodeExecution(rows *sql.Rows) (NodeExecution, error) {
	var e NodeExecution
	var startedAt string
	var endedAt, errCol sql.NullString
	if err := rows.Scan(&e.ID, &e.RunID, &e.NodeIndex, &e.NodeID, &e.NodeName, &startedAt, &endedAt, &e.Status, &errCol); err != nil {
		return NodeExecution{}, err
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if endedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, endedAt.String)
		e.EndedAt = &t
	}
	if errCol.Valid {
		e.Error = errCol.String
	}
	return e, nil
}
