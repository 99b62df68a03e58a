// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqldriver implements a database/sql driver over the sqlite3
// typed layer.
//
// The driver is registered as "sqlite3". For initial configuration of
// a connection, or to enable tracing, use the Connector function:
//
//	connInitFunc := func(ctx context.Context, conn driver.ConnPrepareContext) error {
//		return sqldriver.ExecScript(conn.(sqldriver.SQLConn), "PRAGMA journal_mode=WAL;")
//	}
//	db := sql.OpenDB(sqldriver.Connector(sqliteURI, connInitFunc, nil))
//
// In-memory databases are popular for tests. Use the "memdb" VFS (not
// the legacy in-memory modes) to be compatible with the database/sql
// connection pool:
//
//	file:/dbname?vfs=memdb
//
// Use a different dbname for each memory database opened.
//
// Parameter binding follows sqlite3.ValueOf, and columns declared
// DATETIME, DATE, or BOOLEAN decode to time.Time and bool.
package sqldriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thatstoasty/sqlite3"
)

func init() {
	sql.Register("sqlite3", drv{})
}

// ConnInitFunc is a function called by the driver on new connections.
//
// The conn can be used to execute queries, and implements SQLConn.
// Any error return closes the conn and passes the error to
// database/sql.
type ConnInitFunc func(ctx context.Context, conn driver.ConnPrepareContext) error

type drv struct{}

func (drv) Open(name string) (driver.Conn, error) { panic("deprecated, unused") }
func (drv) OpenConnector(name string) (driver.Connector, error) {
	return &connector{name: name}, nil
}

// Connector returns a driver.Connector for the database at sqliteURI.
// connInitFunc and tracer may be nil.
func Connector(sqliteURI string, connInitFunc ConnInitFunc, tracer sqlite3.Tracer) driver.Connector {
	return &connector{
		name:         sqliteURI,
		tracer:       tracer,
		connInitFunc: connInitFunc,
	}
}

type connector struct {
	name         string
	tracer       sqlite3.Tracer
	connInitFunc ConnInitFunc
}

func (p *connector) Driver() driver.Driver { return drv{} }

func (p *connector) Connect(ctx context.Context) (driver.Conn, error) {
	sc, err := sqlite3.OpenConn(p.name)
	if err != nil {
		return nil, err
	}
	if p.tracer != nil {
		sc.SetTracer(p.tracer)
	}
	c := &conn{conn: sc}
	if p.connInitFunc != nil {
		if err := p.connInitFunc(ctx, c); err != nil {
			sc.Close()
			return nil, fmt.Errorf("sqldriver.ConnInitFunc: %w", err)
		}
	}
	return c, nil
}

type conn struct {
	conn     *sqlite3.Conn
	inTx     bool
	readOnly bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) { panic("deprecated, unused") }
func (c *conn) Begin() (driver.Tx, error)                 { panic("deprecated, unused") }

func (c *conn) Close() error {
	err := c.conn.Close()
	if errors.Is(err, sqlite3.ErrClosed) {
		return nil
	}
	return err
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &stmt{stmt: s}, nil
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	const LevelSerializable = 6 // matches the sql package constant
	if opts.Isolation != 0 && opts.Isolation != LevelSerializable {
		return nil, errors.New("sqldriver: only the serializable isolation level is supported")
	}
	if opts.ReadOnly {
		if err := c.conn.Begin(); err != nil {
			return nil, err
		}
		if err := c.conn.Exec("PRAGMA query_only=true"); err != nil {
			c.conn.Rollback()
			return nil, err
		}
		c.readOnly = true
	} else {
		if err := c.conn.BeginImmediate(); err != nil {
			return nil, err
		}
	}
	c.inTx = true
	return &connTx{conn: c}, nil
}

// Raw is so ConnInitFunc can cast to SQLConn.
func (c *conn) Raw(fn func(any) error) error { return fn(c) }

type connTx struct {
	conn *conn
}

func (tx *connTx) Commit() error   { return tx.conn.txEnd((*sqlite3.Conn).Commit) }
func (tx *connTx) Rollback() error { return tx.conn.txEnd((*sqlite3.Conn).Rollback) }

func (c *conn) txEnd(end func(*sqlite3.Conn) error) error {
	if !c.inTx {
		return nil
	}
	c.inTx = false
	err := end(c.conn)
	if c.readOnly {
		c.readOnly = false
		if err2 := c.conn.Exec("PRAGMA query_only=false"); err == nil {
			err = err2
		}
	}
	return err
}

type stmt struct {
	stmt *sqlite3.Stmt

	// filled on first use
	colNames     []string
	colDeclTypes []colDeclType
}

func (s *stmt) Close() error {
	err := s.stmt.Finalize()
	if errors.Is(err, sqlite3.ErrClosed) {
		return nil
	}
	return err
}

func (s *stmt) NumInput() int { return s.stmt.ParameterCount() }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) { panic("deprecated, unused") }
func (s *stmt) Query(args []driver.Value) (driver.Rows, error)  { panic("deprecated, unused") }

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.bindAll(ctx, args); err != nil {
		return nil, err
	}
	changes, err := s.stmt.Exec()
	if err != nil {
		return nil, err
	}
	return getStmtResult(s.stmt.Conn().LastInsertRowID(), changes), nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := s.bindAll(ctx, args); err != nil {
		return nil, err
	}
	rs, err := s.stmt.Query()
	if err != nil {
		return nil, err
	}
	return &rows{stmt: s, rows: rs}, nil
}

// bindAll rebinds every parameter for a fresh execution. database/sql
// checks NumInput, so args always covers every slot.
func (s *stmt) bindAll(ctx context.Context, args []driver.NamedValue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.stmt.Reset(); err != nil {
		return err
	}
	for _, arg := range args {
		v, err := sqlite3.ValueOf(arg.Value)
		if err != nil {
			return err
		}
		if arg.Name != "" {
			if err := s.stmt.BindNamed(map[string]any{arg.Name: v}); err != nil {
				return err
			}
			continue
		}
		if err := s.stmt.BindValue(arg.Ordinal, v); err != nil {
			return err
		}
	}
	return nil
}

var (
	stmtResultZeroRows = &stmtResult{}
	stmtResultOneRow   = &stmtResult{rowsAffected: 1}
)

func getStmtResult(lastInsertID, rowsAffected int64) *stmtResult {
	// Some common cases to avoid allocs:
	if lastInsertID == 0 {
		switch rowsAffected {
		case 0:
			return stmtResultZeroRows
		case 1:
			return stmtResultOneRow
		}
	}
	return &stmtResult{lastInsertID: lastInsertID, rowsAffected: rowsAffected}
}

type stmtResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (res *stmtResult) LastInsertId() (int64, error) { return res.lastInsertID, nil }
func (res *stmtResult) RowsAffected() (int64, error) { return res.rowsAffected, nil }

// colDeclType is whether and how the declared column type should map
// to any special handling (as a date, or as a boolean, etc).
type colDeclType byte

const (
	declTypeUnknown colDeclType = iota
	declTypeDateOrTime
	declTypeBoolean
)

func colDeclTypeFromString(s string) colDeclType {
	if strings.EqualFold(s, "DATETIME") || strings.EqualFold(s, "DATE") {
		return declTypeDateOrTime
	}
	if strings.EqualFold(s, "BOOLEAN") {
		return declTypeBoolean
	}
	return declTypeUnknown
}

type rows struct {
	stmt   *stmt
	rows   *sqlite3.Rows
	closed bool
}

func (r *rows) Columns() []string {
	if r.closed {
		panic("Columns called after Rows was closed")
	}
	if r.stmt.colNames == nil {
		n := r.stmt.stmt.ColumnCount()
		r.stmt.colNames = make([]string, n)
		for i := range r.stmt.colNames {
			r.stmt.colNames[i], _ = r.stmt.stmt.ColumnName(i)
		}
	}
	return append([]string{}, r.stmt.colNames...)
}

func (r *rows) Close() error {
	if r.closed {
		return errors.New("sqldriver: rows result already closed")
	}
	r.closed = true
	return r.rows.Close()
}

func (r *rows) Next(dest []driver.Value) error {
	if r.closed {
		return errors.New("sqldriver: rows result already closed")
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}

	if r.stmt.colDeclTypes == nil {
		n := r.stmt.stmt.ColumnCount()
		r.stmt.colDeclTypes = make([]colDeclType, n)
		for i := range r.stmt.colDeclTypes {
			decl, _ := r.stmt.stmt.ColumnDeclType(i)
			r.stmt.colDeclTypes[i] = colDeclTypeFromString(decl)
		}
	}

	row := r.rows.Row()
	for i := range dest {
		v, err := row.Value(i)
		if err != nil {
			return err
		}
		dv, err := driverValue(v, r.stmt.colDeclTypes[i])
		if err != nil {
			return fmt.Errorf("sqldriver: column %d: %w", i, err)
		}
		dest[i] = dv
	}
	return nil
}

func driverValue(v sqlite3.Value, decl colDeclType) (driver.Value, error) {
	switch decl {
	case declTypeDateOrTime:
		switch v.Kind() {
		case sqlite3.KindInteger:
			return time.Unix(v.Int64(), 0), nil
		case sqlite3.KindText:
			return parseTimeText(v.Text())
		}
	case declTypeBoolean:
		if v.Kind() == sqlite3.KindInteger {
			return v.Int64() > 0, nil
		}
	}
	switch v.Kind() {
	case sqlite3.KindNull:
		return nil, nil
	case sqlite3.KindInteger:
		return v.Int64(), nil
	case sqlite3.KindFloat:
		return v.Float64(), nil
	case sqlite3.KindText:
		return v.Text(), nil
	default:
		return v.Blob(), nil
	}
}

func parseTimeText(s string) (time.Time, error) {
	// Stored text may be any truncation of the full format.
	for _, layout := range []string{
		sqlite3.TimeFormat,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// SQLConn is a database/sql.Conn.
// (We cannot create a circular package dependency here.)
type SQLConn interface {
	Raw(func(driverConn any) error) error
}

// ExecScript executes a set of SQL queries on an sql.Conn.
// It stops on the first error.
// It is recommended you wrap your script in a BEGIN; ... COMMIT; block.
//
// Usage:
//
//	c, err := db.Conn(ctx)
//	if err != nil {
//		// handle err
//	}
//	if err := sqldriver.ExecScript(c, queries); err != nil {
//		// handle err
//	}
//	c.Close() // return sql.Conn to pool
func ExecScript(sqlconn SQLConn, queries string) error {
	return sqlconn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*conn)
		if !ok {
			return fmt.Errorf("sqldriver.ExecScript: sql.Conn is not this driver: %T", driverConn)
		}
		return c.conn.ExecScript(queries)
	})
}

// BusyTimeout sets the busy timeout on the underlying connection.
func BusyTimeout(sqlconn SQLConn, d time.Duration) error {
	return sqlconn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*conn)
		if !ok {
			return fmt.Errorf("sqldriver.BusyTimeout: sql.Conn is not this driver: %T", driverConn)
		}
		c.conn.BusyTimeout(d)
		return nil
	})
}
