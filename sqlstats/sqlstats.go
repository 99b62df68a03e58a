// Copyright (c) 2024 The sqlite3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlstats implements a sqlite3.Tracer that collects query stats.
package sqlstats

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thatstoasty/sqlite3"
)

// Tracer collects per-query execution stats.
//
// To use, pass the tracer to Conn.SetTracer (or sqldriver.Connector),
// then serve the debug page with http.HandlerFunc(tracer.Handle).
type Tracer struct {
	// Once a query has been seen once, only the read lock
	// is required to update stats.
	mu      sync.RWMutex
	queries map[string]*queryStats // normalized query -> stats
}

var _ sqlite3.Tracer = (*Tracer)(nil)

type queryStats struct {
	// All fields must be accessed as atomics while inside the
	// queries map.
	count    int64
	errors   int64
	duration int64 // time.Duration
}

// QueryStats is a snapshot of one query's collected stats.
type QueryStats struct {
	Query    string
	Count    int64
	Errors   int64
	Duration time.Duration
	Mean     time.Duration
}

func (t *Tracer) queryStats(query string) *queryStats {
	t.mu.RLock()
	stats := t.queries[query]
	t.mu.RUnlock()

	if stats != nil {
		return stats
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queries == nil {
		t.queries = make(map[string]*queryStats)
	}
	stats = t.queries[query]
	if stats == nil {
		stats = &queryStats{}
		t.queries[query] = stats
	}
	return stats
}

// Query implements sqlite3.Tracer.
func (t *Tracer) Query(connID int, query string, duration time.Duration, err error) {
	stats := t.queryStats(normalizeQuery(query))

	atomic.AddInt64(&stats.count, 1)
	atomic.AddInt64(&stats.duration, int64(duration))
	if err != nil {
		atomic.AddInt64(&stats.errors, 1)
	}
}

// Reset drops all collected stats.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = nil
}

// Collect returns a snapshot of the stats for every query seen so far,
// in no particular order.
func (t *Tracer) Collect() []*QueryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]*QueryStats, 0, len(t.queries))
	for query, s := range t.queries {
		row := &QueryStats{
			Query:    query,
			Count:    atomic.LoadInt64(&s.count),
			Errors:   atomic.LoadInt64(&s.errors),
			Duration: time.Duration(atomic.LoadInt64(&s.duration)),
		}
		if row.Count > 0 {
			row.Mean = row.Duration / time.Duration(row.Count)
		}
		rows = append(rows, row)
	}
	return rows
}

// normalizeQuery collapses literal IN (...) lists so variants of the
// same query aggregate under one key.
func normalizeQuery(q string) string {
	lower := strings.ToLower(q)
	i := strings.Index(lower, " in (")
	if i == -1 {
		return q
	}
	start := i + len(" in (")
	end := strings.IndexByte(q[start:], ')')
	if end == -1 {
		return q
	}
	for _, r := range q[start : start+end] {
		switch {
		case r >= '0' && r <= '9', r == ',', r == ' ', r == '\t':
		default:
			// Not a literal list (likely a subquery); leave it.
			return q
		}
	}
	return q[:i] + " IN (...)" + normalizeQuery(q[start+end+1:])
}

// Handle serves an HTML table of the collected stats.
// The sort query parameter selects the sort column.
func (t *Tracer) Handle(w http.ResponseWriter, r *http.Request) {
	getArgs, _ := url.ParseQuery(r.URL.RawQuery)
	sortParam := strings.TrimSpace(getArgs.Get("sort"))
	rows := t.Collect()

	switch sortParam {
	case "", "count":
		sort.Slice(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	case "query":
		sort.Slice(rows, func(i, j int) bool { return rows[i].Query < rows[j].Query })
	case "duration":
		sort.Slice(rows, func(i, j int) bool { return rows[i].Duration > rows[j].Duration })
	case "errors":
		sort.Slice(rows, func(i, j int) bool { return rows[i].Errors > rows[j].Errors })
	case "mean":
		sort.Slice(rows, func(i, j int) bool { return rows[i].Mean > rows[j].Mean })
	default:
		http.Error(w, fmt.Sprintf("unknown sort: %q", sortParam), 400)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(200)
	fmt.Fprintf(w, `<!DOCTYPE html><html><body>
	<p>Trace of queries run via the sqlite3 package.</p>
	<table border="1">
	<tr>
	<th><a href="?sort=query">Query</a></th>
	<th><a href="?sort=count">Count</a></th>
	<th><a href="?sort=duration">Duration</a></th>
	<th><a href="?sort=mean">Mean</a></th>
	<th><a href="?sort=errors">Errors</a></th>
	</tr>
	`)
	for _, row := range rows {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td><td>%s</td><td>%s</td><td>%d</td></tr>\n",
			row.Query,
			row.Count,
			row.Duration.Round(time.Second),
			row.Mean.Round(time.Millisecond),
			row.Errors,
		)
	}
	fmt.Fprintf(w, "</table></body></html>")
}
