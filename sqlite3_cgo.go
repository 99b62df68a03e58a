// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo

package sqlite3

import "github.com/thatstoasty/sqlite3/cengine"

func init() {
	Open = cengine.Open
}
