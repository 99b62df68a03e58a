// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func prepare(t testing.TB, conn *Conn, query string) *Stmt {
	t.Helper()
	stmt, err := conn.Prepare(query)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stmt.finalizeQuiet() })
	return stmt
}

func TestInsertAndQuery(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, balance REAL)")

	ins := prepare(t, conn, "INSERT INTO users (name, balance) VALUES (?, ?)")
	id, err := ins.Insert("alice", 12.5)
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("rowid=%d, want 1", id)
	}
	if id, err = ins.Insert("bob", -3.25); err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("rowid=%d, want 2", id)
	}

	sel := prepare(t, conn, "SELECT name, balance FROM users WHERE balance >= ? ORDER BY id")
	rows, err := sel.Query(0.0)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for rows.Next() {
		var name string
		var balance float64
		if err := rows.Scan(&name, &balance); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if err := rows.Close(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alice"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestBindCountMismatch(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (a, b)")
	stmt := prepare(t, conn, "INSERT INTO t VALUES (?, ?)")

	err := stmt.Bind("only one")
	var ce *ParameterCountError
	if !errors.As(err, &ce) {
		t.Fatalf("Bind error = %v, want *ParameterCountError", err)
	}
	if ce.Got != 1 || ce.Want != 2 {
		t.Errorf("ParameterCountError = %+v, want Got=1 Want=2", ce)
	}
	if _, err := stmt.Exec(1, 2, 3); !errors.As(err, &ce) {
		t.Errorf("Exec with too many args = %v, want *ParameterCountError", err)
	}
	// The exact count still works.
	if _, err := stmt.Exec(1, 2); err != nil {
		t.Fatal(err)
	}
}

func TestBindNamed(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (a, b)")
	stmt := prepare(t, conn, "INSERT INTO t VALUES (:a, @b)")

	if err := stmt.BindNamed(map[string]any{":a": int64(1), "b": "two"}); err != nil {
		t.Fatal(err)
	}
	if _, err := stmt.Exec(); err != nil {
		t.Fatal(err)
	}

	err := stmt.BindNamed(map[string]any{"nosuch": 1})
	var ne *ParameterNotFoundError
	if !errors.As(err, &ne) {
		t.Fatalf("BindNamed error = %v, want *ParameterNotFoundError", err)
	}
	if ne.Name != "nosuch" {
		t.Errorf("Name=%q, want %q", ne.Name, "nosuch")
	}

	sel := prepare(t, conn, "SELECT a, b FROM t")
	got, err := QueryRow(sel, func(r *Row) ([2]Value, error) {
		var vals [2]Value
		for i := range vals {
			v, err := r.Value(i)
			if err != nil {
				return vals, err
			}
			vals[i] = v.Clone()
		}
		return vals, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Int64() != 1 || got[1].Text() != "two" {
		t.Errorf("row = %v, want (1, \"two\")", got)
	}
}

func TestBindTypesRoundTrip(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (v)")
	ins := prepare(t, conn, "INSERT INTO t VALUES (?)")
	sel := prepare(t, conn, "SELECT v FROM t WHERE rowid = ?")

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"null", nil, Null()},
		{"int", 42, Integer(42)},
		{"int64", int64(-1 << 40), Integer(-1 << 40)},
		{"bool", true, Integer(1)},
		{"uint32", uint32(7), Integer(7)},
		{"float", 1.5, Float(1.5)},
		{"string", "hello", Text("hello")},
		{"blob", []byte{0x1, 0x2, 0x3}, Blob([]byte{0x1, 0x2, 0x3})},
		{"value", Text("wrapped"), Text("wrapped")},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ins.Exec(tt.in); err != nil {
				t.Fatal(err)
			}
			got, err := QueryRow(sel, func(r *Row) (Value, error) {
				v, err := r.Value(0)
				return v.Clone(), err
			}, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind() != tt.want.Kind() {
				t.Fatalf("kind=%v, want %v", got.Kind(), tt.want.Kind())
			}
			if got.String() != tt.want.String() {
				t.Errorf("value=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestBindUnsupportedTypes(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (v)")
	stmt := prepare(t, conn, "INSERT INTO t VALUES (?)")

	for _, v := range []any{uint64(1), uint(1), struct{}{}, map[string]int{}} {
		_, err := stmt.Exec(v)
		var te *ParameterTypeError
		if !errors.As(err, &te) {
			t.Errorf("Exec(%T) error = %v, want *ParameterTypeError", v, err)
		}
	}
}

func TestBindTime(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (at DATETIME)")
	ins := prepare(t, conn, "INSERT INTO t VALUES (?)")
	sel := prepare(t, conn, "SELECT at FROM t")

	want := time.Date(2024, 3, 5, 10, 30, 15, 0, time.UTC)
	if _, err := ins.Exec(want); err != nil {
		t.Fatal(err)
	}
	got, err := QueryRow(sel, func(r *Row) (time.Time, error) {
		var at time.Time
		err := r.Scan(&at)
		return at, err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("time=%v, want %v", got, want)
	}
}

func TestResetAndReuse(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (n INTEGER)")
	ins := prepare(t, conn, "INSERT INTO t VALUES (?)")

	for i := 0; i < 10; i++ {
		if _, err := ins.Exec(i); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sel := prepare(t, conn, "SELECT count(*), sum(n) FROM t")
	var count, sum int64
	_, err := QueryRow(sel, func(r *Row) (struct{}, error) {
		return struct{}{}, r.Scan(&count, &sum)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 10 || sum != 45 {
		t.Errorf("count=%d sum=%d, want 10 and 45", count, sum)
	}
}

func TestBindingsSurviveReset(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (v)")
	stmt := prepare(t, conn, "INSERT INTO t VALUES (?)")

	if err := stmt.Bind("again"); err != nil {
		t.Fatal(err)
	}
	// Exec with no args reuses the existing bindings across resets.
	for i := 0; i < 2; i++ {
		if _, err := stmt.Exec(); err != nil {
			t.Fatal(err)
		}
	}
	sel := prepare(t, conn, "SELECT count(*) FROM t WHERE v = 'again'")
	n, err := QueryRow(sel, func(r *Row) (int64, error) {
		v, err := r.Value(0)
		return v.Int64(), err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count=%d, want 2", n)
	}

	// ClearBindings drops the value back to NULL.
	if err := stmt.ClearBindings(); err != nil {
		t.Fatal(err)
	}
	if _, err := stmt.Exec(); err != nil {
		t.Fatal(err)
	}
	sel2 := prepare(t, conn, "SELECT count(*) FROM t WHERE v IS NULL")
	n, err = QueryRow(sel2, func(r *Row) (int64, error) {
		v, err := r.Value(0)
		return v.Int64(), err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("null count=%d, want 1", n)
	}
}

func TestExecOnRowProducingStatement(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (c)")
	exec(t, conn, "INSERT INTO t VALUES (1)")
	stmt := prepare(t, conn, "SELECT c FROM t")

	if _, err := stmt.Exec(); !errors.Is(err, ErrUnexpectedRows) {
		t.Fatalf("Exec on SELECT = %v, want ErrUnexpectedRows", err)
	}
	// The statement is reset and still usable for Query.
	ok, err := stmt.Exists()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Exists=false after failed Exec, want true")
	}
}

func TestInsertChangeCount(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (n INTEGER)")
	exec(t, conn, "INSERT INTO t VALUES (1)")
	exec(t, conn, "INSERT INTO t VALUES (2)")

	upd := prepare(t, conn, "UPDATE t SET n = n + 1")
	_, err := upd.Insert()
	var ce *ChangeCountError
	if !errors.As(err, &ce) {
		t.Fatalf("Insert error = %v, want *ChangeCountError", err)
	}
	if ce.Got != 2 || ce.Want != 1 {
		t.Errorf("ChangeCountError = %+v, want Got=2 Want=1", ce)
	}
}

func TestExists(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (n INTEGER)")
	exec(t, conn, "INSERT INTO t VALUES (7)")

	stmt := prepare(t, conn, "SELECT n FROM t WHERE n = ?")
	for _, tt := range []struct {
		arg  int64
		want bool
	}{{7, true}, {8, false}} {
		got, err := stmt.Exists(tt.arg)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Exists(%d)=%v, want %v", tt.arg, got, tt.want)
		}
	}
}

func TestFinalize(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (c)")
	stmt, err := conn.Prepare("SELECT c FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if err := stmt.Finalize(); err != nil {
		t.Fatal(err)
	}
	// Second Finalize is a no-op.
	if err := stmt.Finalize(); err != nil {
		t.Errorf("second Finalize = %v, want nil", err)
	}

	if _, err := stmt.Step(); !errors.Is(err, ErrFinalized) {
		t.Errorf("Step after Finalize = %v, want ErrFinalized", err)
	}
	if err := stmt.Bind(1); !errors.Is(err, ErrFinalized) {
		t.Errorf("Bind after Finalize = %v, want ErrFinalized", err)
	}
	if err := stmt.Reset(); !errors.Is(err, ErrFinalized) {
		t.Errorf("Reset after Finalize = %v, want ErrFinalized", err)
	}
	if _, err := stmt.Query(); !errors.Is(err, ErrFinalized) {
		t.Errorf("Query after Finalize = %v, want ErrFinalized", err)
	}
	if _, err := stmt.ColumnName(0); !errors.Is(err, ErrFinalized) {
		t.Errorf("ColumnName after Finalize = %v, want ErrFinalized", err)
	}
}

func TestColumnMetadata(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE t (id INTEGER PRIMARY KEY, Name TEXT, at DATETIME)")
	stmt := prepare(t, conn, "SELECT id, Name, at FROM t")

	if n := stmt.ColumnCount(); n != 3 {
		t.Fatalf("ColumnCount=%d, want 3", n)
	}
	name, err := stmt.ColumnName(1)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Name" {
		t.Errorf("ColumnName(1)=%q, want %q", name, "Name")
	}
	if _, err := stmt.ColumnName(3); err == nil {
		t.Error("ColumnName(3) succeeded, want range error")
	}

	// Lookup is case-insensitive.
	for _, lookup := range []string{"Name", "name", "NAME"} {
		i, err := stmt.ColumnIndex(lookup)
		if err != nil {
			t.Fatal(err)
		}
		if i != 1 {
			t.Errorf("ColumnIndex(%q)=%d, want 1", lookup, i)
		}
	}
	_, err = stmt.ColumnIndex("nosuch")
	var ne *ColumnNameError
	if !errors.As(err, &ne) {
		t.Fatalf("ColumnIndex error = %v, want *ColumnNameError", err)
	}

	decl, err := stmt.ColumnDeclType(2)
	if err != nil {
		t.Fatal(err)
	}
	if decl != "DATETIME" {
		t.Errorf("ColumnDeclType(2)=%q, want DATETIME", decl)
	}

	if !stmt.ReadOnly() {
		t.Error("SELECT reported as not read-only")
	}
	if stmt.IsExplain() {
		t.Error("SELECT reported as EXPLAIN")
	}

	ins := prepare(t, conn, "INSERT INTO t (Name) VALUES (?)")
	if ins.ReadOnly() {
		t.Error("INSERT reported as read-only")
	}
	exp := prepare(t, conn, "EXPLAIN SELECT id FROM t")
	if !exp.IsExplain() {
		t.Error("EXPLAIN not reported as EXPLAIN")
	}
}

func TestDuplicateColumnNames(t *testing.T) {
	conn := openTestConn(t)
	exec(t, conn, "CREATE TABLE a (x)")
	exec(t, conn, "CREATE TABLE b (x)")
	stmt := prepare(t, conn, "SELECT a.x AS x, b.x AS x FROM a, b")

	// The leftmost match wins.
	i, err := stmt.ColumnIndex("x")
	if err != nil {
		t.Fatal(err)
	}
	if i != 0 {
		t.Errorf("ColumnIndex(x)=%d, want 0", i)
	}
}
