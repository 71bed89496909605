// Package recorder persists per-tick samples to a SQLite flight log so
// bench runs can be inspected after the fact. Recording is optional and
// strictly off the control path: samples are buffered and flushed in
// batches.
package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
)

const flushThreshold = 256

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	run_id           TEXT NOT NULL,
	ts_ms            INTEGER NOT NULL,
	node             TEXT NOT NULL,
	process_variable REAL NOT NULL,
	actuator_command REAL NOT NULL,
	sequence         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_run_node ON samples (run_id, node);
`

// Sample is one tick observation.
type Sample struct {
	TimestampMS     int64
	Node            string
	ProcessVariable float64
	ActuatorCommand float64
	Sequence        uint32
}

// Recorder writes samples for one run, identified by a fresh run ID.
type Recorder struct {
	db    *sql.DB
	runID string

	mu  sync.Mutex
	buf []Sample
}

func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: create schema: %w", err)
	}
	return &Recorder{
		db:    db,
		runID: xid.New().String(),
		buf:   make([]Sample, 0, flushThreshold),
	}, nil
}

// RunID identifies this process's rows in a shared database file.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record buffers one sample, flushing when the batch fills. A flush
// failure drops the batch; the flight log is best effort.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, s)
	if len(r.buf) >= flushThreshold {
		_ = r.flushLocked()
	}
}

// Flush writes all buffered samples.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.buf) == 0 {
		return nil
	}
	batch := r.buf
	r.buf = make([]Sample, 0, flushThreshold)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("recorder: begin: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO samples (run_id, ts_ms, node, process_variable, actuator_command, sequence) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("recorder: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range batch {
		if _, err := stmt.Exec(r.runID, s.TimestampMS, s.Node, s.ProcessVariable, s.ActuatorCommand, s.Sequence); err != nil {
			tx.Rollback()
			return fmt.Errorf("recorder: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recorder: commit: %w", err)
	}
	return nil
}

// Close flushes and releases the database.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	if err := r.db.Close(); err != nil {
		return err
	}
	return flushErr
}
