// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import "strconv"

// Code is an SQLite extended result code.
//
// The three status codes SQLITE_OK, SQLITE_ROW, and SQLITE_DONE report
// success, not failure, and must never be wrapped in an error.
type Code int

// Primary result codes.
// https://sqlite.org/rescode.html
const (
	SQLITE_OK         = Code(0) // not an error
	SQLITE_ERROR      = Code(1)
	SQLITE_INTERNAL   = Code(2)
	SQLITE_PERM       = Code(3)
	SQLITE_ABORT      = Code(4)
	SQLITE_BUSY       = Code(5)
	SQLITE_LOCKED     = Code(6)
	SQLITE_NOMEM      = Code(7)
	SQLITE_READONLY   = Code(8)
	SQLITE_INTERRUPT  = Code(9)
	SQLITE_IOERR      = Code(10)
	SQLITE_CORRUPT    = Code(11)
	SQLITE_NOTFOUND   = Code(12)
	SQLITE_FULL       = Code(13)
	SQLITE_CANTOPEN   = Code(14)
	SQLITE_PROTOCOL   = Code(15)
	SQLITE_EMPTY      = Code(16)
	SQLITE_SCHEMA     = Code(17)
	SQLITE_TOOBIG     = Code(18)
	SQLITE_CONSTRAINT = Code(19)
	SQLITE_MISMATCH   = Code(20)
	SQLITE_MISUSE     = Code(21)
	SQLITE_NOLFS      = Code(22)
	SQLITE_AUTH       = Code(23)
	SQLITE_FORMAT     = Code(24)
	SQLITE_RANGE      = Code(25)
	SQLITE_NOTADB     = Code(26)
	SQLITE_NOTICE     = Code(27)
	SQLITE_WARNING    = Code(28)
	SQLITE_ROW        = Code(100) // not an error
	SQLITE_DONE       = Code(101) // not an error
)

// Extended result codes this layer cares to name. Codes outside this set
// still round-trip through Code; they just stringify numerically.
const (
	SQLITE_ERROR_MISSING_COLLSEQ = Code(SQLITE_ERROR | (1 << 8))
	SQLITE_ERROR_RETRY           = Code(SQLITE_ERROR | (2 << 8))
	SQLITE_ERROR_SNAPSHOT        = Code(SQLITE_ERROR | (3 << 8))
	SQLITE_ABORT_ROLLBACK        = Code(SQLITE_ABORT | (2 << 8))
	SQLITE_BUSY_RECOVERY         = Code(SQLITE_BUSY | (1 << 8))
	SQLITE_BUSY_SNAPSHOT         = Code(SQLITE_BUSY | (2 << 8))
	SQLITE_BUSY_TIMEOUT          = Code(SQLITE_BUSY | (3 << 8))
	SQLITE_LOCKED_SHAREDCACHE    = Code(SQLITE_LOCKED | (1 << 8))
	SQLITE_LOCKED_VTAB           = Code(SQLITE_LOCKED | (2 << 8))
	SQLITE_READONLY_RECOVERY     = Code(SQLITE_READONLY | (1 << 8))
	SQLITE_READONLY_CANTLOCK     = Code(SQLITE_READONLY | (2 << 8))
	SQLITE_READONLY_ROLLBACK     = Code(SQLITE_READONLY | (3 << 8))
	SQLITE_READONLY_DBMOVED      = Code(SQLITE_READONLY | (4 << 8))
	SQLITE_IOERR_READ            = Code(SQLITE_IOERR | (1 << 8))
	SQLITE_IOERR_SHORT_READ      = Code(SQLITE_IOERR | (2 << 8))
	SQLITE_IOERR_WRITE           = Code(SQLITE_IOERR | (3 << 8))
	SQLITE_IOERR_FSYNC           = Code(SQLITE_IOERR | (4 << 8))
	SQLITE_IOERR_TRUNCATE        = Code(SQLITE_IOERR | (6 << 8))
	SQLITE_IOERR_FSTAT           = Code(SQLITE_IOERR | (7 << 8))
	SQLITE_IOERR_DELETE          = Code(SQLITE_IOERR | (10 << 8))
	SQLITE_IOERR_NOMEM           = Code(SQLITE_IOERR | (12 << 8))
	SQLITE_IOERR_ACCESS          = Code(SQLITE_IOERR | (13 << 8))
	SQLITE_IOERR_LOCK            = Code(SQLITE_IOERR | (15 << 8))
	SQLITE_CORRUPT_VTAB          = Code(SQLITE_CORRUPT | (1 << 8))
	SQLITE_CORRUPT_SEQUENCE      = Code(SQLITE_CORRUPT | (2 << 8))
	SQLITE_CORRUPT_INDEX         = Code(SQLITE_CORRUPT | (3 << 8))
	SQLITE_CANTOPEN_NOTEMPDIR    = Code(SQLITE_CANTOPEN | (1 << 8))
	SQLITE_CANTOPEN_ISDIR        = Code(SQLITE_CANTOPEN | (2 << 8))
	SQLITE_CANTOPEN_FULLPATH     = Code(SQLITE_CANTOPEN | (3 << 8))
	SQLITE_CANTOPEN_SYMLINK      = Code(SQLITE_CANTOPEN | (6 << 8))
	SQLITE_CONSTRAINT_CHECK      = Code(SQLITE_CONSTRAINT | (1 << 8))
	SQLITE_CONSTRAINT_FOREIGNKEY = Code(SQLITE_CONSTRAINT | (3 << 8))
	SQLITE_CONSTRAINT_NOTNULL    = Code(SQLITE_CONSTRAINT | (5 << 8))
	SQLITE_CONSTRAINT_PRIMARYKEY = Code(SQLITE_CONSTRAINT | (6 << 8))
	SQLITE_CONSTRAINT_TRIGGER    = Code(SQLITE_CONSTRAINT | (7 << 8))
	SQLITE_CONSTRAINT_UNIQUE     = Code(SQLITE_CONSTRAINT | (8 << 8))
	SQLITE_CONSTRAINT_ROWID      = Code(SQLITE_CONSTRAINT | (10 << 8))
)

var codeNames = map[Code]string{
	SQLITE_OK:                    "SQLITE_OK",
	SQLITE_ERROR:                 "SQLITE_ERROR",
	SQLITE_INTERNAL:              "SQLITE_INTERNAL",
	SQLITE_PERM:                  "SQLITE_PERM",
	SQLITE_ABORT:                 "SQLITE_ABORT",
	SQLITE_BUSY:                  "SQLITE_BUSY",
	SQLITE_LOCKED:                "SQLITE_LOCKED",
	SQLITE_NOMEM:                 "SQLITE_NOMEM",
	SQLITE_READONLY:              "SQLITE_READONLY",
	SQLITE_INTERRUPT:             "SQLITE_INTERRUPT",
	SQLITE_IOERR:                 "SQLITE_IOERR",
	SQLITE_CORRUPT:               "SQLITE_CORRUPT",
	SQLITE_NOTFOUND:              "SQLITE_NOTFOUND",
	SQLITE_FULL:                  "SQLITE_FULL",
	SQLITE_CANTOPEN:              "SQLITE_CANTOPEN",
	SQLITE_PROTOCOL:              "SQLITE_PROTOCOL",
	SQLITE_EMPTY:                 "SQLITE_EMPTY",
	SQLITE_SCHEMA:                "SQLITE_SCHEMA",
	SQLITE_TOOBIG:                "SQLITE_TOOBIG",
	SQLITE_CONSTRAINT:            "SQLITE_CONSTRAINT",
	SQLITE_MISMATCH:              "SQLITE_MISMATCH",
	SQLITE_MISUSE:                "SQLITE_MISUSE",
	SQLITE_NOLFS:                 "SQLITE_NOLFS",
	SQLITE_AUTH:                  "SQLITE_AUTH",
	SQLITE_FORMAT:                "SQLITE_FORMAT",
	SQLITE_RANGE:                 "SQLITE_RANGE",
	SQLITE_NOTADB:                "SQLITE_NOTADB",
	SQLITE_NOTICE:                "SQLITE_NOTICE",
	SQLITE_WARNING:               "SQLITE_WARNING",
	SQLITE_ROW:                   "SQLITE_ROW",
	SQLITE_DONE:                  "SQLITE_DONE",
	SQLITE_ERROR_MISSING_COLLSEQ: "SQLITE_ERROR_MISSING_COLLSEQ",
	SQLITE_ERROR_RETRY:           "SQLITE_ERROR_RETRY",
	SQLITE_ERROR_SNAPSHOT:        "SQLITE_ERROR_SNAPSHOT",
	SQLITE_ABORT_ROLLBACK:        "SQLITE_ABORT_ROLLBACK",
	SQLITE_BUSY_RECOVERY:         "SQLITE_BUSY_RECOVERY",
	SQLITE_BUSY_SNAPSHOT:         "SQLITE_BUSY_SNAPSHOT",
	SQLITE_BUSY_TIMEOUT:          "SQLITE_BUSY_TIMEOUT",
	SQLITE_LOCKED_SHAREDCACHE:    "SQLITE_LOCKED_SHAREDCACHE",
	SQLITE_LOCKED_VTAB:           "SQLITE_LOCKED_VTAB",
	SQLITE_READONLY_RECOVERY:     "SQLITE_READONLY_RECOVERY",
	SQLITE_READONLY_CANTLOCK:     "SQLITE_READONLY_CANTLOCK",
	SQLITE_READONLY_ROLLBACK:     "SQLITE_READONLY_ROLLBACK",
	SQLITE_READONLY_DBMOVED:      "SQLITE_READONLY_DBMOVED",
	SQLITE_IOERR_READ:            "SQLITE_IOERR_READ",
	SQLITE_IOERR_SHORT_READ:      "SQLITE_IOERR_SHORT_READ",
	SQLITE_IOERR_WRITE:           "SQLITE_IOERR_WRITE",
	SQLITE_IOERR_FSYNC:           "SQLITE_IOERR_FSYNC",
	SQLITE_IOERR_TRUNCATE:        "SQLITE_IOERR_TRUNCATE",
	SQLITE_IOERR_FSTAT:           "SQLITE_IOERR_FSTAT",
	SQLITE_IOERR_DELETE:          "SQLITE_IOERR_DELETE",
	SQLITE_IOERR_NOMEM:           "SQLITE_IOERR_NOMEM",
	SQLITE_IOERR_ACCESS:          "SQLITE_IOERR_ACCESS",
	SQLITE_IOERR_LOCK:            "SQLITE_IOERR_LOCK",
	SQLITE_CORRUPT_VTAB:          "SQLITE_CORRUPT_VTAB",
	SQLITE_CORRUPT_SEQUENCE:      "SQLITE_CORRUPT_SEQUENCE",
	SQLITE_CORRUPT_INDEX:         "SQLITE_CORRUPT_INDEX",
	SQLITE_CANTOPEN_NOTEMPDIR:    "SQLITE_CANTOPEN_NOTEMPDIR",
	SQLITE_CANTOPEN_ISDIR:        "SQLITE_CANTOPEN_ISDIR",
	SQLITE_CANTOPEN_FULLPATH:     "SQLITE_CANTOPEN_FULLPATH",
	SQLITE_CANTOPEN_SYMLINK:      "SQLITE_CANTOPEN_SYMLINK",
	SQLITE_CONSTRAINT_CHECK:      "SQLITE_CONSTRAINT_CHECK",
	SQLITE_CONSTRAINT_FOREIGNKEY: "SQLITE_CONSTRAINT_FOREIGNKEY",
	SQLITE_CONSTRAINT_NOTNULL:    "SQLITE_CONSTRAINT_NOTNULL",
	SQLITE_CONSTRAINT_PRIMARYKEY: "SQLITE_CONSTRAINT_PRIMARYKEY",
	SQLITE_CONSTRAINT_TRIGGER:    "SQLITE_CONSTRAINT_TRIGGER",
	SQLITE_CONSTRAINT_UNIQUE:     "SQLITE_CONSTRAINT_UNIQUE",
	SQLITE_CONSTRAINT_ROWID:      "SQLITE_CONSTRAINT_ROWID",
}

func (code Code) String() string {
	if s, ok := codeNames[code]; ok {
		return s
	}
	return "SQLITE_UNKNOWN_ERR(" + strconv.Itoa(int(code)) + ")"
}

// Primary strips the extended bits from code.
func (code Code) Primary() Code { return code & 0xff }

// errStrs mirrors the sqlite3_errstr table for primary codes: a generic,
// connection-independent description of the result code.
var errStrs = map[Code]string{
	SQLITE_OK:         "not an error",
	SQLITE_ERROR:      "SQL logic error",
	SQLITE_INTERNAL:   "internal error",
	SQLITE_PERM:       "access permission denied",
	SQLITE_ABORT:      "query aborted",
	SQLITE_BUSY:       "database is locked",
	SQLITE_LOCKED:     "database table is locked",
	SQLITE_NOMEM:      "out of memory",
	SQLITE_READONLY:   "attempt to write a readonly database",
	SQLITE_INTERRUPT:  "interrupted",
	SQLITE_IOERR:      "disk I/O error",
	SQLITE_CORRUPT:    "database disk image is malformed",
	SQLITE_NOTFOUND:   "unknown operation",
	SQLITE_FULL:       "database or disk is full",
	SQLITE_CANTOPEN:   "unable to open database file",
	SQLITE_PROTOCOL:   "locking protocol",
	SQLITE_SCHEMA:     "database schema has changed",
	SQLITE_TOOBIG:     "string or blob too big",
	SQLITE_CONSTRAINT: "constraint failed",
	SQLITE_MISMATCH:   "datatype mismatch",
	SQLITE_MISUSE:     "bad parameter or other API misuse",
	SQLITE_AUTH:       "authorization denied",
	SQLITE_RANGE:      "column index out of range",
	SQLITE_NOTADB:     "file is not a database",
	SQLITE_NOTICE:     "notification message",
	SQLITE_WARNING:    "warning message",
	SQLITE_ROW:        "another row available",
	SQLITE_DONE:       "no more rows available",
}

// ErrStr returns a generic description of code, like sqlite3_errstr.
// It always returns something; an unrecognized code degrades to a
// message embedding the numeric value.
func ErrStr(code Code) string {
	if s, ok := errStrs[code.Primary()]; ok {
		return s
	}
	return "unknown engine error (" + strconv.Itoa(int(code)) + ")"
}

// ErrCode is a Code as a Go error.
// It must not hold SQLITE_OK, SQLITE_ROW, or SQLITE_DONE.
type ErrCode Code

func (e ErrCode) Error() string { return Code(e).String() }

// Code returns the underlying result code.
func (e ErrCode) Code() Code { return Code(e) }

// codeErrs interns the named codes so the hot CodeAsError path does not
// allocate for common results.
var codeErrs = func() map[Code]error {
	m := make(map[Code]error, len(codeNames))
	for code := range codeNames {
		switch code {
		case SQLITE_OK, SQLITE_ROW, SQLITE_DONE:
			continue
		}
		m[code] = ErrCode(code)
	}
	return m
}()

// CodeAsError converts an engine result code into an error.
// The non-error status codes return nil.
func CodeAsError(code Code) error {
	switch code {
	case SQLITE_OK, SQLITE_ROW, SQLITE_DONE:
		return nil
	}
	if err, ok := codeErrs[code]; ok {
		return err
	}
	return ErrCode(code)
}
