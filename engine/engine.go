// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine defines the boundary to the embedded SQLite engine.
//
// The native library is reachable only through a C-style function table.
// This package models that table as a pair of Go interfaces, DB and Stmt,
// one method per native entry point, plus the numeric constants those
// entry points traffic in. The cgo trampolines implementing the
// interfaces live in the cengine package; everything above this boundary
// is ordinary Go with no unsafe code.
package engine

import "time"

// OpenFunc is sqlite3_open_v2.
//
// Surprisingly: an error opening the DB can return a non-nil handle.
// Call Close on it.
//
// https://sqlite.org/c3ref/open.html
type OpenFunc func(filename string, flags OpenFlags, vfs string) (DB, error)

// DB is an sqlite3* database connection handle.
//
// A DB is exclusively owned by whoever opened it and is not safe for
// concurrent use. Close fails with SQLITE_BUSY while prepared statements
// derived from the handle remain unfinalized; the native library also
// offers a deferred "zombie" close (sqlite3_close_v2) that tolerates
// stragglers, which this boundary deliberately does not expose.
//
// https://sqlite.org/c3ref/sqlite3.html
type DB interface {
	// Close is sqlite3_close.
	Close() error
	// ErrMsg is sqlite3_errmsg, the message for the most recent failed
	// call on this handle.
	ErrMsg() string
	// ErrCode is sqlite3_extended_errcode, the code for the most recent
	// failed call on this handle.
	ErrCode() Code
	// Changes is sqlite3_changes64.
	Changes() int64
	// TotalChanges is sqlite3_total_changes64.
	TotalChanges() int64
	// LastInsertRowID is sqlite3_last_insert_rowid.
	LastInsertRowID() int64
	// Prepare is sqlite3_prepare_v3. It compiles the first statement in
	// query and returns any trailing text.
	Prepare(query string, flags PrepareFlags) (stmt Stmt, remainingQuery string, err error)
	// Interrupt is sqlite3_interrupt. It may be called from another
	// goroutine to abort an in-flight Step.
	Interrupt()
	// BusyTimeout is sqlite3_busy_timeout.
	BusyTimeout(time.Duration)
}

// Stmt is an sqlite3_stmt* prepared statement handle.
//
// The native library enforces a strict sequencing discipline: bind, then
// step, then read columns, then reset or finalize. Column text and blob
// memory is engine-owned and valid only until the next call on the same
// handle.
//
// https://sqlite.org/c3ref/stmt.html
type Stmt interface {
	// SQL is sqlite3_sql, the original statement text.
	SQL() string
	// Reset is sqlite3_reset. Bindings are retained.
	Reset() error
	// ClearBindings is sqlite3_clear_bindings.
	ClearBindings() error
	// Finalize is sqlite3_finalize.
	Finalize() error
	// Step is sqlite3_step.
	//	For SQLITE_ROW, Step returns (true, nil).
	//	For SQLITE_DONE, Step returns (false, nil).
	//	For any error, Step returns (false, err).
	Step() (row bool, err error)

	// BindNull is sqlite3_bind_null. Parameter indexes are 1-based.
	BindNull(index int) error
	// BindInt64 is sqlite3_bind_int64.
	BindInt64(index int, value int64) error
	// BindDouble is sqlite3_bind_double.
	BindDouble(index int, value float64) error
	// BindText is sqlite3_bind_text64. The engine copies value before
	// returning; it never retains caller memory.
	BindText(index int, value string) error
	// BindBlob is sqlite3_bind_blob64, with the same copy semantics as
	// BindText.
	BindBlob(index int, value []byte) error
	// BindZeroBlob is sqlite3_bind_zeroblob64.
	BindZeroBlob(index int, n uint64) error
	// BindParameterCount is sqlite3_bind_parameter_count.
	BindParameterCount() int
	// BindParameterName is sqlite3_bind_parameter_name.
	BindParameterName(index int) string
	// BindParameterIndex is sqlite3_bind_parameter_index. The name must
	// include its prefix rune (":", "@", or "$"). Zero means no match.
	BindParameterIndex(name string) int

	// ColumnCount is sqlite3_column_count.
	ColumnCount() int
	// ColumnName is sqlite3_column_name.
	ColumnName(col int) string
	// ColumnType is sqlite3_column_type for the current row.
	ColumnType(col int) ColumnType
	// ColumnInt64 is sqlite3_column_int64.
	ColumnInt64(col int) int64
	// ColumnDouble is sqlite3_column_double.
	ColumnDouble(col int) float64
	// ColumnText is sqlite3_column_text, copied into a Go string.
	ColumnText(col int) string
	// ColumnBlob is sqlite3_column_blob.
	//
	// WARNING: the returned memory is engine-owned and valid only until
	// the next call on this Stmt.
	ColumnBlob(col int) []byte
	// ColumnDeclType is sqlite3_column_decltype, or "" for expressions.
	ColumnDeclType(col int) string

	// ReadOnly is sqlite3_stmt_readonly.
	ReadOnly() bool
	// IsExplain reports whether sqlite3_stmt_isexplain is non-zero.
	IsExplain() bool
}
