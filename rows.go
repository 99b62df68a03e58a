// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/thatstoasty/sqlite3/engine"
)

// Rows is a forward-only view over a statement's result rows,
// returned by Stmt.Query. Rows are produced lazily: each Next steps
// the statement once.
//
// Close resets the underlying statement (preserving bindings) so it
// can be executed again; it does not finalize it.
type Rows struct {
	stmt   *Stmt
	row    Row
	err    error
	done   bool
	closed bool
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurs; check Err to tell the two apart.
func (rs *Rows) Next() bool {
	if rs.closed || rs.done || rs.err != nil {
		return false
	}
	row, err := rs.stmt.Step()
	if err != nil {
		rs.err = err
		return false
	}
	if !row {
		rs.done = true
		return false
	}
	return true
}

// Err returns the first error encountered while iterating, if any.
func (rs *Rows) Err() error { return rs.err }

// Row returns a view of the current row. The view stays valid only
// until the next call to Next, Close, or any statement mutation.
func (rs *Rows) Row() *Row { return &rs.row }

// Scan reads the current row's columns into dest, as Row.Scan.
func (rs *Rows) Scan(dest ...any) error {
	if rs.err != nil {
		return rs.err
	}
	return rs.row.Scan(dest...)
}

// Close ends the iteration and resets the statement.
// Closing twice is a no-op.
func (rs *Rows) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	rs.stmt.trace(time.Since(rs.stmt.started), rs.err)
	if rs.stmt.state == stateFinalized {
		return nil
	}
	if err := rs.stmt.Reset(); err != nil && rs.err == nil {
		return err
	}
	return nil
}

// Row is a view of a statement's current row. It holds no data of its
// own: every read goes to the statement, so a Row is only readable
// while its statement is on a row (after a Step or Next that returned
// true) and its values may reference engine-owned memory that the next
// Step invalidates. Copy with Value.Clone to keep data longer.
type Row struct {
	stmt *Stmt
}

func (r *Row) guard(loc string) error {
	if r.stmt.state == stateFinalized {
		UsesAfterFinalize.Add(loc, 1)
		return ErrFinalized
	}
	if r.stmt.state != stateRow {
		return ErrNoCurrentRow
	}
	return nil
}

// ColumnCount reports the number of columns in the row.
func (r *Row) ColumnCount() int { return r.stmt.ColumnCount() }

// Value reads the 0-based column as a Value whose kind matches the
// column's storage class. Text and integer values are copied; blob
// values alias engine memory valid only until the next Step or Reset.
func (r *Row) Value(col int) (Value, error) {
	if err := r.guard("Value"); err != nil {
		return Value{}, err
	}
	if n := r.stmt.stmt.ColumnCount(); col < 0 || col >= n {
		return Value{}, &ColumnIndexError{Index: col, Count: n}
	}
	switch t := r.stmt.stmt.ColumnType(col); t {
	case engine.SQLITE_NULL:
		return Null(), nil
	case engine.SQLITE_INTEGER:
		return Integer(r.stmt.stmt.ColumnInt64(col)), nil
	case engine.SQLITE_FLOAT:
		return Float(r.stmt.stmt.ColumnDouble(col)), nil
	case engine.SQLITE_TEXT:
		return Text(r.stmt.stmt.ColumnText(col)), nil
	case engine.SQLITE_BLOB:
		return Blob(r.stmt.stmt.ColumnBlob(col)), nil
	default:
		return Value{}, &ColumnTypeError{Code: t}
	}
}

// ValueByName reads the column with the given name, matched
// case-insensitively.
func (r *Row) ValueByName(name string) (Value, error) {
	col, err := r.stmt.ColumnIndex(name)
	if err != nil {
		return Value{}, err
	}
	return r.Value(col)
}

// Scan reads columns 0..len(dest)-1 into dest.
//
// Each dest element must be a pointer: *int64 and the other integer
// pointer types, *float64, *bool, *string, *[]byte (copied), *Value,
// *time.Time, or an sql.Scanner. A NULL column leaves integers,
// floats, and bools zeroed, strings empty, and byte slices nil.
func (r *Row) Scan(dest ...any) error {
	if err := r.guard("Scan"); err != nil {
		return err
	}
	if n := r.stmt.stmt.ColumnCount(); len(dest) > n {
		return &ColumnIndexError{Index: len(dest) - 1, Count: n}
	}
	for i, d := range dest {
		if err := r.scanColumn(i, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *Row) scanColumn(col int, dest any) error {
	es := r.stmt.stmt
	switch d := dest.(type) {
	case *Value:
		v, err := r.Value(col)
		if err != nil {
			return err
		}
		*d = v.Clone()
		return nil
	case *string:
		*d = es.ColumnText(col)
		return nil
	case *[]byte:
		*d = append([]byte(nil), es.ColumnBlob(col)...)
		if len(*d) == 0 && es.ColumnType(col) == engine.SQLITE_NULL {
			*d = nil
		}
		return nil
	case *bool:
		*d = es.ColumnInt64(col) != 0
		return nil
	case *int:
		*d = int(es.ColumnInt64(col))
		return nil
	case *int32:
		*d = int32(es.ColumnInt64(col))
		return nil
	case *int64:
		*d = es.ColumnInt64(col)
		return nil
	case *float64:
		*d = es.ColumnDouble(col)
		return nil
	case *time.Time:
		t, err := r.scanTime(col)
		if err != nil {
			return err
		}
		*d = t
		return nil
	case sql.Scanner:
		v, err := r.Value(col)
		if err != nil {
			return err
		}
		return d.Scan(scannerValue(v))
	}
	return r.scanReflect(col, dest)
}

func (r *Row) scanReflect(col int, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("sqlite3: Scan destination %T is not a valid pointer", dest)
	}
	es := r.stmt.stmt
	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Bool:
		elem.SetBool(es.ColumnInt64(col) != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		elem.SetInt(es.ColumnInt64(col))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		elem.SetUint(uint64(es.ColumnInt64(col)))
	case reflect.Float32, reflect.Float64:
		elem.SetFloat(es.ColumnDouble(col))
	case reflect.String:
		elem.SetString(es.ColumnText(col))
	default:
		return fmt.Errorf("sqlite3: unsupported Scan destination %T", dest)
	}
	return nil
}

// scanTime decodes a column stored either as TimeFormat text or, for
// columns declared as integers, as a Unix timestamp.
func (r *Row) scanTime(col int) (time.Time, error) {
	es := r.stmt.stmt
	switch es.ColumnType(col) {
	case engine.SQLITE_NULL:
		return time.Time{}, nil
	case engine.SQLITE_INTEGER:
		return time.Unix(es.ColumnInt64(col), 0).UTC(), nil
	}
	s := es.ColumnText(col)
	for _, layout := range []string{TimeFormat, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("sqlite3: cannot parse %q as time", s)
}

// scannerValue converts v to the type set sql.Scanner implementations
// expect.
func scannerValue(v Value) any {
	switch v.Kind() {
	case KindInteger:
		return v.n
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	}
	return nil
}

// MappedRows adapts a Rows into a sequence of T by applying a
// conversion function to each row. It buffers nothing: rows are
// converted one at a time as Next is called.
type MappedRows[T any] struct {
	rows *Rows
	fn   func(*Row) (T, error)
}

// Map wraps rows so each row is converted by fn.
// Closing the MappedRows closes rows.
func Map[T any](rows *Rows, fn func(*Row) (T, error)) *MappedRows[T] {
	return &MappedRows[T]{rows: rows, fn: fn}
}

// Next converts and returns the next row. The second result is false
// when the rows are exhausted, the conversion fails, or an earlier
// error stopped iteration; check Err.
func (m *MappedRows[T]) Next() (T, bool) {
	var zero T
	if !m.rows.Next() {
		return zero, false
	}
	v, err := m.fn(m.rows.Row())
	if err != nil {
		m.rows.err = err
		return zero, false
	}
	return v, true
}

// Err returns the first error encountered, from iteration or
// conversion.
func (m *MappedRows[T]) Err() error { return m.rows.Err() }

// Close closes the underlying Rows.
func (m *MappedRows[T]) Close() error { return m.rows.Close() }

// Collect drains the remaining rows into a slice.
func (m *MappedRows[T]) Collect() ([]T, error) {
	var out []T
	for {
		v, ok := m.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	if err := m.Err(); err != nil {
		m.Close()
		return nil, err
	}
	return out, m.Close()
}

// QueryRow executes the statement and converts its first row with fn.
// It returns ErrNoRows if the statement produces no rows. Rows past
// the first are not fetched. The statement is reset afterward.
func QueryRow[T any](s *Stmt, fn func(*Row) (T, error), args ...any) (T, error) {
	var zero T
	rows, err := s.Query(args...)
	if err != nil {
		return zero, err
	}
	if !rows.Next() {
		rows.Close()
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, ErrNoRows
	}
	v, err := fn(rows.Row())
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}
