// Package search implements the table row filter used by list pages. The same
// predicate runs in the browser (web/static/js/app.js) on every keystroke; this
// copy serves requests made without JavaScript via the ?q= parameter.
package search

import "strings"

// Row is the text of one table row, one entry per cell. The last cell is the
// action column and never takes part in matching.
type Row []string

// Text concatenates the searchable cells, mirroring the browser's textContent join.
func (r Row) Text() string {
	if len(r) <= 1 {
		return ""
	}
	return strings.Join(r[:len(r)-1], "")
}

// MatchRow reports whether the query is a case-insensitive substring of the row text.
// The query is used as typed, whitespace included, and both sides are lowercased
// the way the browser's toLowerCase does. An empty query matches every row.
func MatchRow(row Row, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(row.Text()), strings.ToLower(query))
}

// Visibility returns, per row, whether it stays visible for query.
func Visibility(rows []Row, query string) []bool {
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = MatchRow(row, query)
	}
	return out
}

// Filter returns the items whose row, as produced by toRow, matches query.
func Filter[T any](items []T, query string, toRow func(T) Row) []T {
	if query == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if MatchRow(toRow(item), query) {
			out = append(out, item)
		}
	}
	return out
}
