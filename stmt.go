// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"strings"
	"time"

	"github.com/thatstoasty/sqlite3/engine"
)

// stmtState tracks where a statement is in its execution lifecycle.
//
// Prepared means ready to step (freshly prepared or reset), row means
// the last Step produced a row whose columns are readable, done means
// the result set is exhausted, finalized means released. Bindings are
// orthogonal to state: they survive Reset and are only cleared by
// ClearBindings.
type stmtState uint8

const (
	statePrepared stmtState = iota
	stateRow
	stateDone
	stateFinalized
)

// Stmt is a prepared statement, owned by the Conn that prepared it.
// It is not safe for concurrent use.
type Stmt struct {
	conn  *Conn
	stmt  engine.Stmt
	query string
	state stmtState

	colNames []string // cached; the column set is fixed at prepare time
	started  time.Time
}

// Conn returns the connection that prepared s.
func (s *Stmt) Conn() *Conn { return s.conn }

// SQL returns the original query text.
func (s *Stmt) SQL() string { return s.query }

func (s *Stmt) reserr(loc string, err error) error {
	return reserr(s.conn.db, loc, s.query, err)
}

// usable rejects operations on finalized statements and closed
// connections.
func (s *Stmt) usable(loc string) error {
	if s.state == stateFinalized {
		UsesAfterFinalize.Add(loc, 1)
		return ErrFinalized
	}
	if s.conn.closed.Load() {
		UsesAfterClose.Add(loc, 1)
		return ErrClosed
	}
	return nil
}

// Finalize releases the statement. After Finalize every other method
// fails; a second Finalize is a no-op.
func (s *Stmt) Finalize() error {
	if s.state == stateFinalized {
		return nil
	}
	s.state = stateFinalized
	s.conn.stmts--
	return s.reserr("Finalize", s.stmt.Finalize())
}

// finalizeQuiet finalizes on paths where no caller can receive the
// error; failures are counted and logged instead.
func (s *Stmt) finalizeQuiet() {
	if err := s.Finalize(); err != nil {
		FinalizeErrors.Add(1)
		Logf("sqlite3: finalizing %q: %v", s.query, err)
	}
}

// Reset rewinds the statement so it can be stepped again.
// Bindings are preserved.
func (s *Stmt) Reset() error {
	if err := s.usable("Reset"); err != nil {
		return err
	}
	s.state = statePrepared
	return s.reserr("Reset", s.stmt.Reset())
}

// ClearBindings sets every parameter slot back to NULL.
func (s *Stmt) ClearBindings() error {
	if err := s.usable("ClearBindings"); err != nil {
		return err
	}
	return s.reserr("ClearBindings", s.stmt.ClearBindings())
}

// Step advances the statement one row. It reports true when a row is
// ready to read and false when the result set is exhausted. After an
// error the statement must be Reset before stepping again.
func (s *Stmt) Step() (row bool, err error) {
	if err := s.usable("Step"); err != nil {
		return false, err
	}
	row, err = s.stmt.Step()
	if err != nil {
		return false, s.reserr("Step", err)
	}
	if row {
		s.state = stateRow
	} else {
		s.state = stateDone
	}
	return row, nil
}

// ParameterCount reports the number of parameter slots in the query.
func (s *Stmt) ParameterCount() int {
	if err := s.usable("ParameterCount"); err != nil {
		return 0
	}
	return s.stmt.BindParameterCount()
}

// BindValue binds v at the 1-based parameter index.
func (s *Stmt) BindValue(index int, v Value) error {
	if err := s.usable("BindValue"); err != nil {
		return err
	}
	var err error
	switch v.Kind() {
	case KindNull:
		err = s.stmt.BindNull(index)
	case KindInteger:
		err = s.stmt.BindInt64(index, v.n)
	case KindFloat:
		err = s.stmt.BindDouble(index, v.f)
	case KindText:
		err = s.stmt.BindText(index, v.s)
	case KindBlob:
		if len(v.b) == 0 {
			err = s.stmt.BindZeroBlob(index, 0)
		} else {
			err = s.stmt.BindBlob(index, v.b)
		}
	default:
		return &ParameterTypeError{Value: v}
	}
	return s.reserr("BindValue", err)
}

// Bind binds args positionally, starting at slot 1.
//
// The argument count must match the statement's parameter count
// exactly; on mismatch nothing is bound. Argument types follow
// ValueOf.
func (s *Stmt) Bind(args ...any) error {
	if err := s.usable("Bind"); err != nil {
		return err
	}
	if want := s.stmt.BindParameterCount(); len(args) != want {
		return &ParameterCountError{Got: len(args), Want: want}
	}
	for i, arg := range args {
		v, err := ValueOf(arg)
		if err != nil {
			return err
		}
		if err := s.BindValue(i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// BindNamed binds args by parameter name.
//
// Names may be given with or without their prefix rune (":", "@", or
// "$"). Parameters absent from args keep their current binding. A name
// the statement does not declare returns a ParameterNotFoundError;
// names bound before the failing one remain bound.
func (s *Stmt) BindNamed(args map[string]any) error {
	if err := s.usable("BindNamed"); err != nil {
		return err
	}
	for name, arg := range args {
		index := s.paramIndex(name)
		if index == 0 {
			return &ParameterNotFoundError{Name: name}
		}
		v, err := ValueOf(arg)
		if err != nil {
			return err
		}
		if err := s.BindValue(index, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stmt) paramIndex(name string) int {
	if name == "" {
		return 0
	}
	switch name[0] {
	case ':', '@', '$':
		return s.stmt.BindParameterIndex(name)
	}
	for _, prefix := range []string{":", "@", "$"} {
		if i := s.stmt.BindParameterIndex(prefix + name); i > 0 {
			return i
		}
	}
	return 0
}

// rearm resets a stepped statement so Exec and Query always start a
// fresh execution. Bindings carry over.
func (s *Stmt) rearm() error {
	if s.state == stateRow || s.state == stateDone {
		return s.Reset()
	}
	return nil
}

func (s *Stmt) trace(d time.Duration, err error) {
	if t := s.conn.tracer; t != nil {
		t.Query(s.conn.id, s.query, d, err)
	}
}

// Exec runs the statement to completion and reports the number of
// rows changed.
//
// If args are given they are bound positionally first; with no args
// the current bindings are reused. A statement that produces a row
// returns ErrUnexpectedRows: row-producing statements belong on Query.
// The statement is reset afterward and may be Exec'd again.
func (s *Stmt) Exec(args ...any) (changes int64, err error) {
	if err := s.usable("Exec"); err != nil {
		return 0, err
	}
	if err := s.rearm(); err != nil {
		return 0, err
	}
	if len(args) > 0 {
		if err := s.Bind(args...); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	row, err := s.Step()
	s.trace(time.Since(start), err)
	if err != nil {
		return 0, err
	}
	if row {
		if rerr := s.Reset(); rerr != nil {
			return 0, rerr
		}
		return 0, ErrUnexpectedRows
	}
	changes = s.conn.db.Changes()
	if err := s.Reset(); err != nil {
		return changes, err
	}
	return changes, nil
}

// Insert Execs the statement and returns the rowid of the inserted
// row. A statement that changes any number of rows other than one
// returns a ChangeCountError.
func (s *Stmt) Insert(args ...any) (rowid int64, err error) {
	changes, err := s.Exec(args...)
	if err != nil {
		return 0, err
	}
	if changes != 1 {
		return 0, &ChangeCountError{Want: 1, Got: changes}
	}
	return s.conn.db.LastInsertRowID(), nil
}

// Query starts an execution and returns its result rows.
//
// If args are given they are bound positionally first; with no args
// the current bindings are reused. Rows are produced lazily: no row is
// fetched until Rows.Next. The statement must not be rebound or
// re-executed until the Rows is closed.
func (s *Stmt) Query(args ...any) (*Rows, error) {
	if err := s.usable("Query"); err != nil {
		return nil, err
	}
	if err := s.rearm(); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := s.Bind(args...); err != nil {
			return nil, err
		}
	}
	s.started = time.Now()
	rs := &Rows{stmt: s}
	rs.row.stmt = s
	return rs, nil
}

// Exists reports whether the statement produces at least one row.
// The statement is reset afterward.
func (s *Stmt) Exists(args ...any) (bool, error) {
	rows, err := s.Query(args...)
	if err != nil {
		return false, err
	}
	found := rows.Next()
	err = rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, err
	}
	return found, nil
}

// ColumnCount reports the number of result columns.
func (s *Stmt) ColumnCount() int {
	if err := s.usable("ColumnCount"); err != nil {
		return 0
	}
	return s.stmt.ColumnCount()
}

// ColumnName returns the name of the 0-based result column.
func (s *Stmt) ColumnName(col int) (string, error) {
	if err := s.usable("ColumnName"); err != nil {
		return "", err
	}
	if n := s.stmt.ColumnCount(); col < 0 || col >= n {
		return "", &ColumnIndexError{Index: col, Count: n}
	}
	return s.stmt.ColumnName(col), nil
}

// ColumnIndex returns the 0-based index of the named result column.
// Matching is case-insensitive; with duplicate names the leftmost
// column wins.
func (s *Stmt) ColumnIndex(name string) (int, error) {
	if err := s.usable("ColumnIndex"); err != nil {
		return 0, err
	}
	for i, n := range s.columnNames() {
		if strings.EqualFold(n, name) {
			return i, nil
		}
	}
	return 0, &ColumnNameError{Name: name}
}

func (s *Stmt) columnNames() []string {
	if s.colNames == nil {
		n := s.stmt.ColumnCount()
		s.colNames = make([]string, n)
		for i := range s.colNames {
			s.colNames[i] = s.stmt.ColumnName(i)
		}
	}
	return s.colNames
}

// ColumnDeclType returns the declared type of the 0-based result
// column, or "" for expression columns with no declaration.
func (s *Stmt) ColumnDeclType(col int) (string, error) {
	if err := s.usable("ColumnDeclType"); err != nil {
		return "", err
	}
	if n := s.stmt.ColumnCount(); col < 0 || col >= n {
		return "", &ColumnIndexError{Index: col, Count: n}
	}
	return s.stmt.ColumnDeclType(col), nil
}

// ReadOnly reports whether the statement makes no direct changes to
// the database.
func (s *Stmt) ReadOnly() bool {
	if err := s.usable("ReadOnly"); err != nil {
		return false
	}
	return s.stmt.ReadOnly()
}

// IsExplain reports whether the statement is an EXPLAIN or EXPLAIN
// QUERY PLAN.
func (s *Stmt) IsExplain() bool {
	if err := s.usable("IsExplain"); err != nil {
		return false
	}
	return s.stmt.IsExplain()
}
