// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thatstoasty/sqlite3/engine"
)

func openTestConn(t testing.TB) *Conn {
	t.Helper()
	conn, err := OpenConn("file:" + t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("closing test conn: %v", err)
		}
	})
	return conn
}

func exec(t testing.TB, conn *Conn, query string, args ...any) {
	t.Helper()
	if err := conn.Exec(query, args...); err != nil {
		t.Fatal(err)
	}
}

func TestOpenConn(t *testing.T) {
	conn := openTestConn(t)
	stmt, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := QueryRow(stmt, func(r *Row) (int64, error) {
		v, err := r.Value(0)
		return v.Int64(), err
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("SELECT 1 returned %d", got)
	}
	if err := stmt.Finalize(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenConnMissingFile(t *testing.T) {
	_, err := OpenConn("file:"+t.TempDir()+"/missing.db", engine.SQLITE_OPEN_READONLY)
	if err == nil {
		t.Fatal("opening a missing database read-only succeeded")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if e.Code.Primary() != engine.SQLITE_CANTOPEN {
		t.Errorf("Code=%v, want SQLITE_CANTOPEN", e.Code)
	}
}

func TestCloseWithLiveStatements(t *testing.T) {
	conn := openTestConn(t)
	stmt, err := conn.Prepare("SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	err = conn.Close()
	if err == nil {
		t.Fatal("Close succeeded with a live statement")
	}
	if !strings.Contains(err.Error(), "unfinalized") {
		t.Errorf("error does not mention unfinalized statements: %v", err)
	}

	// The connection stays usable until the statement is finalized.
	if _, err := stmt.Exists(); err != nil {
		t.Fatal(err)
	}
	if err := stmt.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if _, err := conn.Prepare("SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Prepare after Close = %v, want ErrClosed", err)
	}
}

func TestPrepareTrailingText(t *testing.T) {
	conn := openTestConn(t)
	_, err := conn.Prepare("SELECT 1; SELECT 2;")
	if err == nil {
		t.Fatal("missing error from trailing command")
	}
	if !strings.Contains(err.Error(), "trailing text") {
		t.Errorf("error does not mention 'trailing text': %v", err)
	}
}

func TestPrepareNoStatement(t *testing.T) {
	conn := openTestConn(t)
	for _, query := range []string{"", "-- just a comment"} {
		if _, err := conn.Prepare(query); err == nil {
			t.Errorf("Prepare(%q) succeeded, want error", query)
		}
	}
}

func TestExecScript(t *testing.T) {
	conn := openTestConn(t)
	err := conn.ExecScript(`
		-- schema
		CREATE TABLE t (c);
		INSERT INTO t VALUES (1);
		INSERT INTO t VALUES (2);
	`)
	if err != nil {
		t.Fatal(err)
	}
	stmt, err := conn.Prepare("SELECT count(*) FROM t")
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	n, err := QueryRow(stmt, func(r *Row) (int64, error) {
		v, err := r.Value(0)
		return v.Int64(), err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count=%d, want 2", n)
	}
}

func TestExecScriptError(t *testing.T) {
	conn := openTestConn(t)
	err := conn.ExecScript("CREATE TABLE t (c); NOT REAL SQL; INSERT INTO t VALUES (1);")
	if err == nil {
		t.Fatal("missing error from bad statement")
	}
	// The statements before the error ran.
	ok, err := exists(t, conn, "SELECT name FROM sqlite_schema WHERE name = 't'")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("CREATE TABLE before the failing statement did not run")
	}
}

func exists(t testing.TB, conn *Conn, query string, args ...any) (bool, error) {
	t.Helper()
	stmt, err := conn.Prepare(query)
	if err != nil {
		return false, err
	}
	defer stmt.Finalize()
	return stmt.Exists(args...)
}

func TestTransactions(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (c)")

	if err := conn.Begin(); err != nil {
		t.Fatal(err)
	}
	exec(t, conn, "INSERT INTO t VALUES (1)")
	if err := conn.Rollback(); err != nil {
		t.Fatal(err)
	}
	ok, err := exists(t, conn, "SELECT c FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("row visible after rollback")
	}

	if err := conn.BeginImmediate(); err != nil {
		t.Fatal(err)
	}
	exec(t, conn, "INSERT INTO t VALUES (1)")
	if err := conn.Commit(); err != nil {
		t.Fatal(err)
	}
	ok, err = exists(t, conn, "SELECT c FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("row missing after commit")
	}
}

func TestChangesAndLastInsertRowID(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (c)")
	exec(t, conn, "INSERT INTO t VALUES (1)")
	if id := conn.LastInsertRowID(); id != 1 {
		t.Errorf("LastInsertRowID=%d, want 1", id)
	}
	exec(t, conn, "INSERT INTO t VALUES (2)")
	exec(t, conn, "UPDATE t SET c = c + 1")
	if n := conn.Changes(); n != 2 {
		t.Errorf("Changes=%d, want 2", n)
	}
	if n := conn.TotalChanges(); n != 4 {
		t.Errorf("TotalChanges=%d, want 4", n)
	}
}

type recordingTracer struct {
	queries   []string
	durations []time.Duration
	errs      []error
}

func (rt *recordingTracer) Query(connID int, query string, d time.Duration, err error) {
	rt.queries = append(rt.queries, query)
	rt.durations = append(rt.durations, d)
	rt.errs = append(rt.errs, err)
}

func TestTracer(t *testing.T) {
	conn := openTestConn(t)
	tracer := &recordingTracer{}
	conn.SetTracer(tracer)

	exec(t, conn, "CREATE TABLE t (c)")
	stmt, err := conn.Prepare("SELECT c FROM t")
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Finalize()
	rows, err := stmt.Query()
	if err != nil {
		t.Fatal(err)
	}
	for rows.Next() {
	}
	if err := rows.Close(); err != nil {
		t.Fatal(err)
	}

	want := []string{"CREATE TABLE t (c)", "SELECT c FROM t"}
	if len(tracer.queries) != len(want) {
		t.Fatalf("traced %d queries %q, want %d", len(tracer.queries), tracer.queries, len(want))
	}
	for i, q := range want {
		if tracer.queries[i] != q {
			t.Errorf("traced query %d = %q, want %q", i, tracer.queries[i], q)
		}
		if tracer.errs[i] != nil {
			t.Errorf("traced query %d err = %v", i, tracer.errs[i])
		}
	}
}

func TestBusyTimeoutAndInterrupt(t *testing.T) {
	conn := openTestConn(t)
	conn.BusyTimeout(10 * time.Millisecond)
	conn.Interrupt() // no-op with nothing running

	exec(t, conn, "CREATE TABLE t (c)")
	exec(t, conn, "INSERT INTO t VALUES (1)")
}
