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

package runlog

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")

	r, err := Open(path, "piControl", "0200-0219")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.RunID() == "" {
		t.Fatal("empty run ID")
	}

	// The pragmas ride along in the DSN; confirm the driver applied
	// them rather than dropping unrecognized parameters.
	var mode string
	if err := r.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode: got %q, want %q", mode, "wal")
	}
	var timeout int
	if err := r.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout: got %d, want 5000", timeout)
	}

	if err := r.Failure(3, 7, "forward model", "no bracketing interval"); err != nil {
		t.Fatal(err)
	}
	if err := r.Failure(4, 0, "forward model", "no solution"); err != nil {
		t.Fatal(err)
	}
	if err := r.Finish(100, 97, 2, 1); err != nil {
		t.Fatal(err)
	}

	failures, err := r.Failures()
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(failures))
	}
	if f := failures[0]; f.J != 3 || f.I != 7 || f.Stage != "forward model" {
		t.Errorf("first failure: got %+v", f)
	}
	if failures[0].RunID != r.RunID() || failures[1].RunID != r.RunID() {
		t.Error("failures not attributed to this run")
	}
}

// TestRecorderSeparateRuns checks that two recorders sharing one
// database file keep their failures apart.
func TestRecorderSeparateRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")

	r1, err := Open(path, "piControl", "0200-0219")
	if err != nil {
		t.Fatal(err)
	}
	defer r1.Close()
	if err := r1.Failure(0, 0, "forward model", "x"); err != nil {
		t.Fatal(err)
	}

	r2, err := Open(path, "historical", "1990-2009")
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()
	if err := r2.Failure(1, 1, "forward model", "y"); err != nil {
		t.Fatal(err)
	}

	f1, err := r1.Failures()
	if err != nil {
		t.Fatal(err)
	}
	f2, err := r2.Failures()
	if err != nil {
		t.Fatal(err)
	}
	if len(f1) != 1 || len(f2) != 1 {
		t.Fatalf("got %d and %d failures, want 1 and 1", len(f1), len(f2))
	}
	if f1[0].Reason != "x" || f2[0].Reason != "y" {
		t.Errorf("failures crossed runs: %+v %+v", f1, f2)
	}
}

// TestRecorderConcurrent exercises the mutex with parallel inserts,
// matching how the grid driver's workers call it.
func TestRecorderConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	r, err := Open(path, "piControl", "0200-0219")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	const n = 20
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			if err := r.Failure(k, k, "forward model", "no solution"); err != nil {
				t.Error(err)
			}
		}(k)
	}
	wg.Wait()

	failures, err := r.Failures()
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != n {
		t.Errorf("got %d failures, want %d", len(failures), n)
	}
}
