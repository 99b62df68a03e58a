// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thatstoasty/sqlite3/engine"
)

var (
	// ErrClosed is returned when an operation is attempted on a
	// connection after Close has already been called.
	ErrClosed = errors.New("sqlite3: connection already closed")

	// ErrFinalized is returned when an operation is attempted on a
	// statement after Finalize. A second Finalize is the one documented
	// exception: it is a no-op, not an error.
	ErrFinalized = errors.New("sqlite3: statement used after Finalize")

	// ErrNoRows is returned by QueryRow when the statement produces no
	// rows at all.
	ErrNoRows = errors.New("sqlite3: no rows returned")

	// ErrUnexpectedRows is returned by Exec when the statement turns out
	// to produce rows; row-producing statements belong on Query.
	ErrUnexpectedRows = errors.New("sqlite3: statement returned rows to Exec")

	// ErrNoCurrentRow is returned when column values are read from a Row
	// whose statement has no decodable row (never stepped, exhausted, or
	// advanced past the view).
	ErrNoCurrentRow = errors.New("sqlite3: no current row")
)

// Error is an error produced by the engine.
type Error struct {
	Code  engine.Code // extended result code (SQLITE_OK is an invalid value)
	Loc   string      // method name that generated the error
	Query string      // original SQL text, if known
	Msg   string      // detail from the engine, best effort
}

func (err *Error) Error() string {
	b := new(strings.Builder)
	b.WriteString("sqlite3")
	if err.Loc != "" {
		b.WriteByte('.')
		b.WriteString(err.Loc)
	}
	b.WriteString(": ")
	b.WriteString(err.Code.String())
	if err.Msg != "" {
		b.WriteString(": ")
		b.WriteString(err.Msg)
	}
	if err.Query != "" {
		b.WriteString(" (")
		b.WriteString(err.Query)
		b.WriteByte(')')
	}
	return b.String()
}

// reserr translates a non-nil engine error into an *Error.
//
// If the connection's most recent error code matches, its detailed
// message is used; otherwise the code's generic description stands in.
// Translation never fails: an unrecognized code degrades to a message
// embedding the numeric value.
func reserr(db engine.DB, loc, query string, err error) error {
	if err == nil {
		return nil
	}
	ec, ok := err.(engine.ErrCode)
	if !ok {
		return err
	}
	code := engine.Code(ec)
	e := &Error{Code: code, Loc: loc, Query: query}
	if db != nil && db.ErrCode() == code {
		e.Msg = db.ErrMsg()
	} else {
		e.Msg = engine.ErrStr(code)
	}
	return e
}

// ParameterCountError reports a positional parameter list whose length
// does not match the statement's parameter count. No slots are bound
// when it is returned.
type ParameterCountError struct {
	Got  int
	Want int
}

func (e *ParameterCountError) Error() string {
	return fmt.Sprintf("sqlite3: got %d parameters, statement wants %d", e.Got, e.Want)
}

// ParameterNotFoundError reports a named parameter the statement does
// not declare. Names bound earlier in the same call remain bound.
type ParameterNotFoundError struct {
	Name string
}

func (e *ParameterNotFoundError) Error() string {
	return fmt.Sprintf("sqlite3: unknown parameter name %q", e.Name)
}

// ParameterTypeError reports a Go value no Value variant can represent.
type ParameterTypeError struct {
	Value any
}

func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("sqlite3: unsupported parameter type %T (try a string or encoding.TextMarshaler)", e.Value)
}

// ColumnIndexError reports a column index at or past ColumnCount.
type ColumnIndexError struct {
	Index int
	Count int
}

func (e *ColumnIndexError) Error() string {
	return fmt.Sprintf("sqlite3: column index %d out of range (%d columns)", e.Index, e.Count)
}

// ColumnNameError reports a column name no declared column matches,
// case-insensitively.
type ColumnNameError struct {
	Name string
}

func (e *ColumnNameError) Error() string {
	return fmt.Sprintf("sqlite3: no column named %q", e.Name)
}

// ColumnTypeError reports a column type code outside the engine's five
// fundamental datatypes, which indicates a protocol violation.
type ColumnTypeError struct {
	Code engine.ColumnType
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("sqlite3: unknown column type code %d", int(e.Code))
}

// ChangeCountError reports an Insert whose statement changed a number
// of rows other than exactly one.
type ChangeCountError struct {
	Want int64
	Got  int64
}

func (e *ChangeCountError) Error() string {
	return fmt.Sprintf("sqlite3: statement changed %d rows, want %d", e.Got, e.Want)
}
