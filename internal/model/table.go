// Package model holds the tabular and run types shared across the pipeline.
package model

import (
	"database/sql"
	"strings"
)

// SchemaRole identifies which raw table a set of cleaning rules applies to.
type SchemaRole string

const (
	RoleFeature SchemaRole = "feature"
	RoleSurvey  SchemaRole = "survey"
)

// RawRow maps a column name to its raw cell text. An absent key or an
// all-whitespace value is a missing cell.
type RawRow map[string]string

// Value returns the cell for col and whether it holds anything.
func (r RawRow) Value(col string) (string, bool) {
	v, ok := r[col]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RawTable is a header plus rows exactly as read from an input file.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether col is part of the header.
func (t RawTable) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// CleanedRow is one retained record. Values is aligned with the owning
// table's Columns.
type CleanedRow struct {
	Category string
	Values   []sql.NullFloat64
}

// CleanedTable is a raw table reduced to a category plus numeric columns.
type CleanedTable struct {
	CategoryColumn string
	Columns        []string
	Rows           []CleanedRow
}

// AggregatedRow holds the per-column means for one category.
type AggregatedRow struct {
	Category string
	Values   []sql.NullFloat64
}

// AggregatedTable has one row per distinct category, sorted ascending.
type AggregatedTable struct {
	CategoryColumn string
	Columns        []string
	Rows           []AggregatedRow
}

// Categories returns the category of every row in table order.
func (t AggregatedTable) Categories() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Category
	}
	return out
}

// Lookup returns the row for category, if present.
func (t AggregatedTable) Lookup(category string) (AggregatedRow, bool) {
	for _, r := range t.Rows {
		if r.Category == category {
			return r, true
		}
	}
	return AggregatedRow{}, false
}
