// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"fmt"
	"strings"
)

// schemaObjects reads name, type, and SQL text for every object in the
// named schema. The sql filter skips auto indexes, which cannot be
// dropped or recreated. See https://www.sqlite.org/schematab.html.
func schemaObjects(conn *Conn, schemaName string) (names, types, sqls []string, err error) {
	stmt, err := conn.Prepare(fmt.Sprintf("SELECT name, type, sql FROM %q.sqlite_schema WHERE sql != ''", schemaName))
	if err != nil {
		return nil, nil, nil, err
	}
	defer stmt.finalizeQuiet()

	rows, err := stmt.Query()
	if err != nil {
		return nil, nil, nil, err
	}
	for rows.Next() {
		var name, sqlType, sqlText string
		if err := rows.Scan(&name, &sqlType, &sqlText); err != nil {
			rows.Close()
			return nil, nil, nil, err
		}
		names = append(names, name)
		types = append(types, sqlType)
		sqls = append(sqls, sqlText)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, nil, err
	}
	return names, types, sqls, rows.Close()
}

// DropAll deletes all the data from a database.
//
// The schemaName parameter follows the SQLite PRAGMA schema-name
// conventions: https://sqlite.org/pragma.html#syntax
func DropAll(conn *Conn, schemaName string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite3.DropAll: %w", err)
		}
	}()

	if schemaName == "" {
		schemaName = "main"
	}

	names, types, _, err := schemaObjects(conn, schemaName)
	if err != nil {
		return err
	}

	var indexes, tables, triggers, views []string
	for i, name := range names {
		switch types[i] {
		case "index":
			indexes = append(indexes, name)
		case "table":
			tables = append(tables, name)
		case "trigger":
			triggers = append(triggers, name)
		case "view":
			views = append(views, name)
		default:
			return fmt.Errorf("unknown sqlite schema type %q for %q", types[i], name)
		}
	}

	// Indexes and triggers first so the tables they hang off drop clean.
	for _, name := range indexes {
		if err := conn.Exec(fmt.Sprintf("DROP INDEX %q.%q", schemaName, name)); err != nil {
			return err
		}
	}
	for _, name := range triggers {
		if err := conn.Exec(fmt.Sprintf("DROP TRIGGER %q.%q", schemaName, name)); err != nil {
			return err
		}
	}
	for _, name := range views {
		if err := conn.Exec(fmt.Sprintf("DROP VIEW %q.%q", schemaName, name)); err != nil {
			return err
		}
	}
	for _, name := range tables {
		if err := conn.Exec(fmt.Sprintf("DROP TABLE %q.%q", schemaName, name)); err != nil {
			return err
		}
	}
	return nil
}

// CopyAll copies the contents of one database to another.
//
// Traditionally this is done in sqlite by closing the database and
// copying the file. However it can be useful to do it online: a single
// exclusive transaction can cross multiple databases, and if multiple
// processes are using a file, this lets one replace the database
// without first communicating with the other processes, asking them to
// close the DB first.
//
// The dstSchemaName and srcSchemaName parameters follow the SQLite
// PRAGMA schema-name conventions:
// https://sqlite.org/pragma.html#syntax
func CopyAll(conn *Conn, dstSchemaName, srcSchemaName string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite3.CopyAll: %w", err)
		}
	}()
	if dstSchemaName == "" {
		dstSchemaName = "main"
	}
	if srcSchemaName == "" {
		srcSchemaName = "main"
	}
	if dstSchemaName == srcSchemaName {
		return fmt.Errorf("source matches destination: %q", srcSchemaName)
	}

	names, types, sqls, err := schemaObjects(conn, srcSchemaName)
	if err != nil {
		return err
	}

	for i, name := range names {
		sqlText := sqls[i]
		// Regardless of the case or whitespace used in the original
		// create statement (or whether or not "if not exists" is used),
		// the SQL text in the sqlite_schema table always reads:
		// 	"CREATE (TABLE|VIEW|INDEX|TRIGGER) name".
		// We take advantage of that here to rewrite the create
		// statement for a different schema.
		switch types[i] {
		case "index":
			sqlText = strings.TrimPrefix(sqlText, "CREATE INDEX ")
			if err := conn.Exec(fmt.Sprintf("CREATE INDEX %q.%s", dstSchemaName, sqlText)); err != nil {
				return err
			}
		case "table":
			sqlText = strings.TrimPrefix(sqlText, "CREATE TABLE ")
			if err := conn.Exec(fmt.Sprintf("CREATE TABLE %q.%s", dstSchemaName, sqlText)); err != nil {
				return err
			}
			if err := conn.Exec(fmt.Sprintf("INSERT INTO %q.%q SELECT * FROM %q.%q", dstSchemaName, name, srcSchemaName, name)); err != nil {
				return err
			}
		case "trigger":
			sqlText = strings.TrimPrefix(sqlText, "CREATE TRIGGER ")
			if err := conn.Exec(fmt.Sprintf("CREATE TRIGGER %q.%s", dstSchemaName, sqlText)); err != nil {
				return err
			}
		case "view":
			sqlText = strings.TrimPrefix(sqlText, "CREATE VIEW ")
			if err := conn.Exec(fmt.Sprintf("CREATE VIEW %q.%s", dstSchemaName, sqlText)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown sqlite schema type %q for %q", types[i], name)
		}
	}
	return nil
}
