// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlite3 is a typed client layer over an embedded SQLite engine.
//
// The engine is reached through the interfaces in the engine package;
// importing this package with cgo enabled links the default C
// implementation. A Conn owns prepared statements whose lifecycle
// follows the engine's: prepare, bind, step, read columns, reset,
// finalize. Statements are cheap to re-execute: bindings survive Reset
// and are only dropped by ClearBindings.
//
// Connections and their statements are not safe for concurrent use;
// open one Conn per goroutine.
package sqlite3

import (
	"errors"
	"expvar"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/thatstoasty/sqlite3/engine"
)

// Open is the entry point used by OpenConn to create engine
// connections. Importing this package with cgo enabled sets it to the
// C implementation; tests may swap in their own.
var Open engine.OpenFunc = func(string, engine.OpenFlags, string) (engine.DB, error) {
	return nil, errors.New("sqlite3: no engine linked into this binary (build with cgo)")
}

// UsesAfterClose counts operations attempted on closed connections,
// keyed by method name.
var UsesAfterClose expvar.Map

// UsesAfterFinalize counts operations attempted on finalized
// statements, keyed by method name.
var UsesAfterFinalize expvar.Map

// FinalizeErrors counts finalize failures swallowed on implicit
// cleanup paths, where no caller is positioned to receive them.
var FinalizeErrors expvar.Int

// Logf logs diagnostics from cleanup paths that cannot return an
// error. It defaults to the standard log package and may be replaced,
// including with a no-op.
var Logf func(format string, args ...any) = log.Printf

// Tracer is the interface for statement execution tracing.
// Implementations must be safe for concurrent use by multiple
// connections.
type Tracer interface {
	// Query is called once per completed execution: after Exec
	// returns, and when a Rows is closed.
	Query(connID int, query string, duration time.Duration, err error)
}

var connIDs atomic.Int32

// Conn is a single database connection.
// It is not safe for concurrent use.
type Conn struct {
	db     engine.DB
	id     int
	tracer Tracer
	closed atomic.Bool
	stmts  int // statements prepared and not yet finalized
}

// OpenConn opens a connection to the database at path.
//
// With no flags the database is opened read-write, created if missing,
// with URI filename interpretation enabled. Multiple flags are OR'd
// together.
func OpenConn(path string, flags ...engine.OpenFlags) (*Conn, error) {
	flag := engine.OpenFlagsDefault
	if len(flags) > 0 {
		flag = 0
		for _, f := range flags {
			flag |= f
		}
	}
	db, err := Open(path, flag, "")
	if err != nil {
		if db != nil {
			// The engine hands back a handle carrying the error
			// detail; read it, then release the handle.
			err = reserr(db, "OpenConn", "", err)
			if cerr := db.Close(); cerr != nil {
				Logf("sqlite3: closing failed connection to %q: %v", path, cerr)
			}
		}
		return nil, err
	}
	return NewConn(db), nil
}

// NewConn wraps an already-open engine connection.
// The Conn takes ownership of db.
func NewConn(db engine.DB) *Conn {
	return &Conn{db: db, id: int(connIDs.Add(1))}
}

// SetTracer attaches t to the connection. Subsequent statement
// executions are reported to it. A nil t disables tracing.
func (c *Conn) SetTracer(t Tracer) { c.tracer = t }

func (c *Conn) reserr(loc, query string, err error) error {
	return reserr(c.db, loc, query, err)
}

// Close releases the connection.
//
// It is an error to close a connection with unfinalized statements;
// Close reports how many remain and leaves the connection open so the
// caller can finalize them. A second Close returns ErrClosed.
func (c *Conn) Close() error {
	if c.closed.Load() {
		UsesAfterClose.Add("Close", 1)
		return ErrClosed
	}
	if c.stmts > 0 {
		return &Error{
			Code: engine.SQLITE_BUSY,
			Loc:  "Close",
			Msg:  fmt.Sprintf("%d statements still unfinalized", c.stmts),
		}
	}
	c.closed.Store(true)
	return c.reserr("Close", "", c.db.Close())
}

// Prepare compiles query into a Stmt owned by c.
//
// The query must contain exactly one statement: trailing non-comment
// text and comment-only queries are errors. The caller must finalize
// the Stmt before closing the connection.
func (c *Conn) Prepare(query string) (*Stmt, error) {
	if c.closed.Load() {
		UsesAfterClose.Add("Prepare", 1)
		return nil, ErrClosed
	}
	query = strings.TrimSpace(query)
	es, rem, err := c.db.Prepare(query, 0)
	if err != nil {
		return nil, c.reserr("Prepare", query, err)
	}
	if es == nil {
		return nil, &Error{
			Code:  engine.SQLITE_MISUSE,
			Loc:   "Prepare",
			Query: query,
			Msg:   "query contains no statement",
		}
	}
	if strings.TrimSpace(rem) != "" {
		if ferr := es.Finalize(); ferr != nil {
			Logf("sqlite3: finalizing multi-statement query %q: %v", query, ferr)
		}
		return nil, &Error{
			Code:  engine.SQLITE_MISUSE,
			Loc:   "Prepare",
			Query: query,
			Msg:   fmt.Sprintf("query has trailing text: %q", rem),
		}
	}
	c.stmts++
	return &Stmt{conn: c, stmt: es, query: query}, nil
}

// Exec prepares, executes, and finalizes a single statement.
// For statements run more than once, Prepare and reuse the Stmt.
func (c *Conn) Exec(query string, args ...any) error {
	stmt, err := c.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(args...)
	stmt.finalizeQuiet()
	return err
}

// ExecScript executes all statements in queries, in order.
// It stops at the first error. Results are discarded.
func (c *Conn) ExecScript(queries string) error {
	if c.closed.Load() {
		UsesAfterClose.Add("ExecScript", 1)
		return ErrClosed
	}
	for {
		queries = strings.TrimSpace(queries)
		if queries == "" {
			return nil
		}
		stmt, rem, err := c.db.Prepare(queries, 0)
		if err != nil {
			return c.reserr("ExecScript", queries, err)
		}
		if stmt == nil {
			// Comment or whitespace before end of script.
			queries = rem
			continue
		}
		_, err = stmt.Step()
		ferr := stmt.Finalize()
		if err != nil {
			return c.reserr("ExecScript", queries, err)
		}
		if ferr != nil {
			return c.reserr("ExecScript", queries, ferr)
		}
		queries = rem
	}
}

// Changes reports the number of rows changed by the most recently
// completed statement on this connection.
func (c *Conn) Changes() int64 {
	if c.closed.Load() {
		UsesAfterClose.Add("Changes", 1)
		return 0
	}
	return c.db.Changes()
}

// TotalChanges reports the number of rows changed since the
// connection was opened.
func (c *Conn) TotalChanges() int64 {
	if c.closed.Load() {
		UsesAfterClose.Add("TotalChanges", 1)
		return 0
	}
	return c.db.TotalChanges()
}

// LastInsertRowID reports the rowid of the most recent successful
// INSERT on this connection, or 0 if there has been none.
func (c *Conn) LastInsertRowID() int64 {
	if c.closed.Load() {
		UsesAfterClose.Add("LastInsertRowID", 1)
		return 0
	}
	return c.db.LastInsertRowID()
}

// BusyTimeout sets how long the engine waits on a locked database
// before returning SQLITE_BUSY.
func (c *Conn) BusyTimeout(d time.Duration) {
	if c.closed.Load() {
		UsesAfterClose.Add("BusyTimeout", 1)
		return
	}
	c.db.BusyTimeout(d)
}

// Interrupt aborts any query in progress on the connection.
// It is the one method safe to call from another goroutine.
func (c *Conn) Interrupt() {
	if c.closed.Load() {
		UsesAfterClose.Add("Interrupt", 1)
		return
	}
	c.db.Interrupt()
}

// Begin starts a deferred transaction.
func (c *Conn) Begin() error { return c.Exec("BEGIN") }

// BeginImmediate starts a transaction that takes the write lock
// immediately rather than on first write.
func (c *Conn) BeginImmediate() error { return c.Exec("BEGIN IMMEDIATE") }

// Commit commits the current transaction.
func (c *Conn) Commit() error { return c.Exec("COMMIT") }

// Rollback rolls back the current transaction.
func (c *Conn) Rollback() error { return c.Exec("ROLLBACK") }
