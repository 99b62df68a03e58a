// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TimeFormat is the string format this package uses to store
// time.Time values in the database. Trailing zero fractional
// seconds and the suffix "+0000" are trimmed before storage.
const TimeFormat = "2006-01-02 15:04:05.999999999-0700"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota + 1
	KindInteger
	KindFloat
	KindText
	KindBlob
)

var kindNames = [...]string{
	KindNull:    "NULL",
	KindInteger: "INTEGER",
	KindFloat:   "FLOAT",
	KindText:    "TEXT",
	KindBlob:    "BLOB",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is one of the engine's five fundamental datatypes:
// null, 64-bit integer, 64-bit float, text, or blob.
//
// The zero Value binds and compares as NULL. A Value read from a row
// may reference engine-owned memory; see Row.Value.
type Value struct {
	kind Kind
	n    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the NULL Value.
func Null() Value { return Value{kind: KindNull} }

// Integer returns a Value holding a 64-bit integer.
func Integer(v int64) Value { return Value{kind: KindInteger, n: v} }

// Float returns a Value holding a 64-bit float.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text returns a Value holding a string.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob returns a Value referencing b. The bytes are not copied.
func Blob(b []byte) Value { return Value{kind: KindBlob, b: b} }

// Kind reports which variant v holds. The zero Value reports KindNull.
func (v Value) Kind() Kind {
	if v.kind == 0 {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Int64 returns v's value as an int64.
// Float values are truncated; other kinds return 0.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInteger:
		return v.n
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float64 returns v's value as a float64.
// Integer values are widened; other kinds return 0.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInteger:
		return float64(v.n)
	}
	return 0
}

// Text returns v's string value, or "" if v is not text.
func (v Value) Text() string {
	if v.kind == KindText {
		return v.s
	}
	return ""
}

// Blob returns v's bytes, or nil if v is not a blob. The returned
// slice aliases v's backing memory; use Clone for a longer lifetime.
func (v Value) Blob() []byte {
	if v.kind == KindBlob {
		return v.b
	}
	return nil
}

// Clone returns a copy of v whose memory is independent of any
// engine-owned buffer v may reference.
func (v Value) Clone() Value {
	if v.kind == KindBlob && v.b != nil {
		v.b = append([]byte(nil), v.b...)
	}
	return v
}

func (v Value) String() string {
	switch v.Kind() {
	case KindNull:
		return "NULL"
	case KindInteger:
		return fmt.Sprintf("%d", v.n)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return fmt.Sprintf("%q", v.s)
	default:
		return fmt.Sprintf("x'%x'", v.b)
	}
}

// ValueOf converts a Go value to a Value.
//
// Supported types are nil, Value itself, bool (stored as 0 or 1),
// signed integers, uint8 through uint32, floats, string, []byte,
// time.Time (stored as TimeFormat text), and encoding.TextMarshaler.
// Other types, including uint and uint64 whose range the engine's
// signed integers cannot cover, produce a ParameterTypeError.
func ValueOf(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		if v {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(v)), nil
	case int8:
		return Integer(int64(v)), nil
	case int16:
		return Integer(int64(v)), nil
	case int32:
		return Integer(int64(v)), nil
	case int64:
		return Integer(v), nil
	case uint8:
		return Integer(int64(v)), nil
	case uint16:
		return Integer(int64(v)), nil
	case uint32:
		return Integer(int64(v)), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Blob(v), nil
	case time.Time:
		return Text(formatTime(v)), nil
	case uint, uint64, uintptr:
		return Value{}, &ParameterTypeError{Value: v}
	}
	if m, ok := v.(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return Value{}, fmt.Errorf("sqlite3: marshaling %T parameter: %w", v, err)
		}
		return Text(string(b)), nil
	}
	return reflectValueOf(v)
}

func reflectValueOf(v any) (Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return Integer(1), nil
		}
		return Integer(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Integer(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	}
	return Value{}, &ParameterTypeError{Value: v}
}

func formatTime(t time.Time) string {
	// A UTC offset of "+0000" is trimmed to keep the stored text
	// comparable with the engine's own datetime() output.
	return strings.TrimSuffix(t.Format(TimeFormat), "+0000")
}
