/*
Copyright © 2024 the DeltaCarb authors.
This file is part of DeltaCarb.

DeltaCarb is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DeltaCarb is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DeltaCarb.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package runlog provides SQLite-based recording of decomposition
// runs and their per-cell forward-model failures, for post-run
// inspection.
package runlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Recorder appends run metadata and per-cell failures to a SQLite
// database. It is safe for concurrent use by the grid driver's
// workers.
type Recorder struct {
	conn  *sqlx.DB
	runID string
	mu    sync.Mutex
}

// Failure is one recorded per-cell failure.
type Failure struct {
	RunID  string `db:"run_id"`
	J      int    `db:"j"`
	I      int    `db:"i"`
	Stage  string `db:"stage"`
	Reason string `db:"reason"`
}

// Open opens or creates the run-log database at path and inserts a
// new run row identified by a fresh UUID.
func Open(path, label, yearRange string) (*Recorder, error) {
	// modernc/sqlite takes pragmas as _pragma=name(value) pairs; the
	// mattn-style _journal_mode form is silently ignored.
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("runlog: open db: %w", err)
	}
	r := &Recorder{conn: conn, runID: uuid.NewString()}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: migrate: %w", err)
	}
	_, err = conn.Exec(
		`INSERT INTO runs (id, label, year_range, started) VALUES (?, ?, ?, ?)`,
		r.runID, label, yearRange, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: insert run: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		year_range TEXT NOT NULL,
		started TEXT NOT NULL,
		finished TEXT,
		cells_total INTEGER,
		cells_ok INTEGER,
		cells_failed INTEGER,
		cells_skipped INTEGER
	);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		j INTEGER NOT NULL,
		i INTEGER NOT NULL,
		stage TEXT NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS failures_run ON failures(run_id);`
	_, err := r.conn.Exec(schema)
	return err
}

// RunID returns the identifier of the run this recorder was opened
// for.
func (r *Recorder) RunID() string {
	return r.runID
}

// Failure records one per-cell failure. It implements the grid
// driver's FailureRecorder interface.
func (r *Recorder) Failure(j, i int, stage, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.conn.Exec(
		`INSERT INTO failures (run_id, j, i, stage, reason) VALUES (?, ?, ?, ?, ?)`,
		r.runID, j, i, stage, reason)
	if err != nil {
		return fmt.Errorf("runlog: insert failure: %w", err)
	}
	return nil
}

// Finish stamps the run row with the finishing time and cell counts.
func (r *Recorder) Finish(total, ok, failed, skipped int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.conn.Exec(
		`UPDATE runs SET finished = ?, cells_total = ?, cells_ok = ?,
			cells_failed = ?, cells_skipped = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), total, ok, failed, skipped, r.runID)
	if err != nil {
		return fmt.Errorf("runlog: finish run: %w", err)
	}
	return nil
}

// Failures returns the failures recorded for this run, in insertion
// order.
func (r *Recorder) Failures() ([]Failure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Failure
	err := r.conn.Select(&out,
		`SELECT run_id, j, i, stage, reason FROM failures WHERE run_id = ? ORDER BY id`, r.runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: query failures: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.conn.Close()
}
