// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cengine is the cgo trampoline layer onto the SQLite3 C API.
//
// It implements the engine.DB and engine.Stmt interfaces with one Go
// function per native entry point and no policy of its own. All cgo and
// unsafe code in the module lives here; callers work with the engine
// interfaces and never see C types.
package cengine

// Compiler options largely follow the upstream recommendations:
// https://www.sqlite.org/compile.html#recommended_compile_time_options
// SQLITE_OMIT_DECLTYPE is not used because the typed layer reads
// declared column types.

// #cgo CFLAGS: -DSQLITE_THREADSAFE=2
// #cgo CFLAGS: -DSQLITE_DEFAULT_MEMSTATUS=0
// #cgo CFLAGS: -DSQLITE_LIKE_DOESNT_MATCH_BLOBS
// #cgo CFLAGS: -DSQLITE_OMIT_DEPRECATED
// #cgo CFLAGS: -DSQLITE_OMIT_PROGRESS_CALLBACK
// #cgo CFLAGS: -DSQLITE_OMIT_SHARED_CACHE
// #cgo CFLAGS: -DSQLITE_ENABLE_COLUMN_METADATA
// #cgo CFLAGS: -DHAVE_USLEEP=1
// #cgo LDFLAGS: -lsqlite3
// #cgo linux LDFLAGS: -ldl -lm
// #cgo linux CFLAGS: -std=c99
//
// #include <stdlib.h>
// #include <string.h>
// #include <sqlite3.h>
//
// // cgo cannot express the SQLITE_TRANSIENT destructor constant
// // ((sqlite3_destructor_type)-1), so the copying binds live in C.
// static int bind_text_copy(sqlite3_stmt *stmt, int i, const char *p, sqlite3_uint64 n) {
//	if (n == 0) {
//		return sqlite3_bind_text(stmt, i, "", 0, SQLITE_STATIC);
//	}
//	return sqlite3_bind_text64(stmt, i, p, n, SQLITE_TRANSIENT, SQLITE_UTF8);
// }
// static int bind_blob_copy(sqlite3_stmt *stmt, int i, const void *p, sqlite3_uint64 n) {
//	if (n == 0) {
//		return sqlite3_bind_zeroblob64(stmt, i, 0);
//	}
//	return sqlite3_bind_blob64(stmt, i, p, n, SQLITE_TRANSIENT);
// }
import "C"

import (
	"time"
	"unsafe"

	"github.com/thatstoasty/sqlite3/engine"
)

func init() {
	C.sqlite3_initialize()
}

// DB is an sqlite3* connection handle.
type DB struct {
	db *C.sqlite3

	// declTypes interns declared column type strings, which repeat
	// heavily across statements on the same schema.
	declTypes map[string]string
}

var _ engine.DB = (*DB)(nil)

// Stmt is an sqlite3_stmt* prepared statement handle.
type Stmt struct {
	db   *DB
	stmt *C.sqlite3_stmt
}

var _ engine.Stmt = (*Stmt)(nil)

// Open is sqlite3_open_v2. It satisfies engine.OpenFunc.
//
// An error opening the DB can still return a non-nil handle, which the
// caller must Close.
func Open(filename string, flags engine.OpenFlags, vfs string) (engine.DB, error) {
	cfilename := C.CString(filename)
	defer C.free(unsafe.Pointer(cfilename))

	cvfs := (*C.char)(nil)
	if vfs != "" {
		cvfs = C.CString(vfs)
		defer C.free(unsafe.Pointer(cvfs))
	}

	var cdb *C.sqlite3
	res := C.sqlite3_open_v2(cfilename, &cdb, C.int(flags), cvfs)
	var db *DB
	if cdb != nil {
		db = &DB{db: cdb}
		C.sqlite3_extended_result_codes(cdb, 1)
	}
	if err := errCode(res); err != nil {
		if db == nil {
			return nil, err
		}
		return db, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return errCode(C.sqlite3_close(db.db))
}

func (db *DB) ErrMsg() string {
	return C.GoString(C.sqlite3_errmsg(db.db))
}

func (db *DB) ErrCode() engine.Code {
	return engine.Code(C.sqlite3_extended_errcode(db.db))
}

func (db *DB) Changes() int64 {
	return int64(C.sqlite3_changes(db.db))
}

func (db *DB) TotalChanges() int64 {
	return int64(C.sqlite3_total_changes(db.db))
}

func (db *DB) LastInsertRowID() int64 {
	return int64(C.sqlite3_last_insert_rowid(db.db))
}

func (db *DB) Interrupt() {
	C.sqlite3_interrupt(db.db)
}

func (db *DB) BusyTimeout(d time.Duration) {
	C.sqlite3_busy_timeout(db.db, C.int(d/time.Millisecond))
}

func (db *DB) Prepare(query string, flags engine.PrepareFlags) (engine.Stmt, string, error) {
	csql := C.CString(query)
	defer C.free(unsafe.Pointer(csql))

	var cstmt *C.sqlite3_stmt
	var ctail *C.char
	res := C.sqlite3_prepare_v3(db.db, csql, C.int(len(query))+1, C.uint(flags), &cstmt, &ctail)
	if err := errCode(res); err != nil {
		return nil, "", err
	}
	var tail string
	if ctail != nil {
		if n := int(C.strlen(ctail)); n > 0 {
			tail = query[len(query)-n:]
		}
	}
	if cstmt == nil {
		// Comment or whitespace only.
		return nil, tail, nil
	}
	return &Stmt{db: db, stmt: cstmt}, tail, nil
}

func (stmt *Stmt) SQL() string {
	return C.GoString(C.sqlite3_sql(stmt.stmt))
}

func (stmt *Stmt) Reset() error {
	return errCode(C.sqlite3_reset(stmt.stmt))
}

func (stmt *Stmt) ClearBindings() error {
	return errCode(C.sqlite3_clear_bindings(stmt.stmt))
}

func (stmt *Stmt) Finalize() error {
	return errCode(C.sqlite3_finalize(stmt.stmt))
}

func (stmt *Stmt) Step() (row bool, err error) {
	res := C.sqlite3_step(stmt.stmt)
	switch res {
	case C.SQLITE_ROW:
		return true, nil
	case C.SQLITE_DONE:
		return false, nil
	default:
		return false, errCode(res)
	}
}

func (stmt *Stmt) BindNull(index int) error {
	return errCode(C.sqlite3_bind_null(stmt.stmt, C.int(index)))
}

func (stmt *Stmt) BindInt64(index int, value int64) error {
	return errCode(C.sqlite3_bind_int64(stmt.stmt, C.int(index), C.sqlite3_int64(value)))
}

func (stmt *Stmt) BindDouble(index int, value float64) error {
	return errCode(C.sqlite3_bind_double(stmt.stmt, C.int(index), C.double(value)))
}

func (stmt *Stmt) BindText(index int, value string) error {
	if len(value) == 0 {
		return errCode(C.bind_text_copy(stmt.stmt, C.int(index), nil, 0))
	}
	cs := C.CString(value)
	defer C.free(unsafe.Pointer(cs))
	return errCode(C.bind_text_copy(stmt.stmt, C.int(index), cs, C.sqlite3_uint64(len(value))))
}

func (stmt *Stmt) BindBlob(index int, value []byte) error {
	var p unsafe.Pointer
	if len(value) > 0 {
		p = unsafe.Pointer(&value[0])
	}
	return errCode(C.bind_blob_copy(stmt.stmt, C.int(index), p, C.sqlite3_uint64(len(value))))
}

func (stmt *Stmt) BindZeroBlob(index int, n uint64) error {
	return errCode(C.sqlite3_bind_zeroblob64(stmt.stmt, C.int(index), C.sqlite3_uint64(n)))
}

func (stmt *Stmt) BindParameterCount() int {
	return int(C.sqlite3_bind_parameter_count(stmt.stmt))
}

func (stmt *Stmt) BindParameterName(index int) string {
	cstr := C.sqlite3_bind_parameter_name(stmt.stmt, C.int(index))
	if cstr == nil {
		return ""
	}
	return C.GoString(cstr)
}

func (stmt *Stmt) BindParameterIndex(name string) int {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return int(C.sqlite3_bind_parameter_index(stmt.stmt, cname))
}

func (stmt *Stmt) ColumnCount() int {
	return int(C.sqlite3_column_count(stmt.stmt))
}

func (stmt *Stmt) ColumnName(col int) string {
	return C.GoString(C.sqlite3_column_name(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnType(col int) engine.ColumnType {
	return engine.ColumnType(C.sqlite3_column_type(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnInt64(col int) int64 {
	return int64(C.sqlite3_column_int64(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnDouble(col int) float64 {
	return float64(C.sqlite3_column_double(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnText(col int) string {
	str := (*C.char)(unsafe.Pointer(C.sqlite3_column_text(stmt.stmt, C.int(col))))
	n := C.sqlite3_column_bytes(stmt.stmt, C.int(col))
	if str == nil || n == 0 {
		return ""
	}
	return C.GoStringN(str, n)
}

// ColumnBlob returns engine-owned memory, valid only until the next call
// on this Stmt.
func (stmt *Stmt) ColumnBlob(col int) []byte {
	p := C.sqlite3_column_blob(stmt.stmt, C.int(col))
	if p == nil {
		return nil
	}
	n := int(C.sqlite3_column_bytes(stmt.stmt, C.int(col)))
	return unsafe.Slice((*byte)(p), n)
}

func (stmt *Stmt) ColumnDeclType(col int) string {
	cstr := C.sqlite3_column_decltype(stmt.stmt, C.int(col))
	if cstr == nil {
		return ""
	}
	n := C.strlen(cstr)
	b := unsafe.Slice((*byte)(unsafe.Pointer(cstr)), int(n))
	if s, ok := stmt.db.declTypes[string(b)]; ok {
		return s
	}
	if stmt.db.declTypes == nil {
		stmt.db.declTypes = make(map[string]string)
	}
	s := string(b)
	stmt.db.declTypes[s] = s
	return s
}

func (stmt *Stmt) ReadOnly() bool {
	return C.sqlite3_stmt_readonly(stmt.stmt) != 0
}

func (stmt *Stmt) IsExplain() bool {
	return C.sqlite3_stmt_isexplain(stmt.stmt) != 0
}

func errCode(code C.int) error { return engine.CodeAsError(engine.Code(code)) }
