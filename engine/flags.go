// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"strconv"
	"strings"
)

// ColumnType are the SQLite fundamental datatypes.
// https://www.sqlite.org/c3ref/c_blob.html
type ColumnType int

const (
	SQLITE_INTEGER ColumnType = 1
	SQLITE_FLOAT   ColumnType = 2
	SQLITE_TEXT    ColumnType = 3
	SQLITE_BLOB    ColumnType = 4
	SQLITE_NULL    ColumnType = 5
)

var columnTypeNames = map[ColumnType]string{
	SQLITE_INTEGER: "SQLITE_INTEGER",
	SQLITE_FLOAT:   "SQLITE_FLOAT",
	SQLITE_TEXT:    "SQLITE_TEXT",
	SQLITE_BLOB:    "SQLITE_BLOB",
	SQLITE_NULL:    "SQLITE_NULL",
}

func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN_SQLITE_DATATYPE"
}

// PrepareFlags are passed to DB.Prepare.
// https://www.sqlite.org/c3ref/c_prepare_normalize.html
type PrepareFlags int

const (
	SQLITE_PREPARE_PERSISTENT PrepareFlags = 0x01
	SQLITE_PREPARE_NORMALIZE  PrepareFlags = 0x02
	SQLITE_PREPARE_NO_VTAB    PrepareFlags = 0x04
)

// OpenFlags are flags used when opening a DB.
// https://www.sqlite.org/c3ref/c_open_autoproxy.html
type OpenFlags int

const (
	SQLITE_OPEN_READONLY     OpenFlags = 0x00000001
	SQLITE_OPEN_READWRITE    OpenFlags = 0x00000002
	SQLITE_OPEN_CREATE       OpenFlags = 0x00000004
	SQLITE_OPEN_URI          OpenFlags = 0x00000040
	SQLITE_OPEN_MEMORY       OpenFlags = 0x00000080
	SQLITE_OPEN_NOMUTEX      OpenFlags = 0x00008000
	SQLITE_OPEN_FULLMUTEX    OpenFlags = 0x00010000
	SQLITE_OPEN_SHAREDCACHE  OpenFlags = 0x00020000
	SQLITE_OPEN_PRIVATECACHE OpenFlags = 0x00040000
	SQLITE_OPEN_WAL          OpenFlags = 0x00080000
	SQLITE_OPEN_NOFOLLOW     OpenFlags = 0x00100000

	// OpenFlagsDefault is the mode used by sqlite3.OpenConn when the
	// caller supplies none. The connection is serialized-access anyway;
	// NOMUTEX only drops the redundant native mutex.
	OpenFlagsDefault = SQLITE_OPEN_READWRITE |
		SQLITE_OPEN_CREATE |
		SQLITE_OPEN_URI |
		SQLITE_OPEN_NOMUTEX
)

var openFlagNames = []struct {
	flag OpenFlags
	name string
}{
	{SQLITE_OPEN_READONLY, "SQLITE_OPEN_READONLY"},
	{SQLITE_OPEN_READWRITE, "SQLITE_OPEN_READWRITE"},
	{SQLITE_OPEN_CREATE, "SQLITE_OPEN_CREATE"},
	{SQLITE_OPEN_URI, "SQLITE_OPEN_URI"},
	{SQLITE_OPEN_MEMORY, "SQLITE_OPEN_MEMORY"},
	{SQLITE_OPEN_NOMUTEX, "SQLITE_OPEN_NOMUTEX"},
	{SQLITE_OPEN_FULLMUTEX, "SQLITE_OPEN_FULLMUTEX"},
	{SQLITE_OPEN_SHAREDCACHE, "SQLITE_OPEN_SHAREDCACHE"},
	{SQLITE_OPEN_PRIVATECACHE, "SQLITE_OPEN_PRIVATECACHE"},
	{SQLITE_OPEN_WAL, "SQLITE_OPEN_WAL"},
	{SQLITE_OPEN_NOFOLLOW, "SQLITE_OPEN_NOFOLLOW"},
}

func (o OpenFlags) String() string {
	var names []string
	rest := o
	for _, fn := range openFlagNames {
		if o&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 || len(names) == 0 {
		names = append(names, "0x"+strconv.FormatInt(int64(rest), 16))
	}
	return strings.Join(names, "|")
}
