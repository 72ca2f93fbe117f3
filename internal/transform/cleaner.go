package transform

import (
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/model"
)

// SchemaError reports a raw table without its required label column.
type SchemaError struct {
	Role   model.SchemaRole
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing column %s in %s table", e.Column, e.Role)
}

// CleanStats counts what cleaning changed.
type CleanStats struct {
	Role              model.SchemaRole
	RowsIn            int
	RowsOut           int
	DroppedNoCategory int
	// CoercionFailures counts non-empty cells that were not finite numbers.
	CoercionFailures map[string]int
	// RangeViolations counts numbers outside the column's declared range.
	RangeViolations map[string]int
}

// Clean maps a raw table into a CleanedTable: labels are folded to genres,
// rows without a genre are dropped, numeric columns are parsed and values
// outside their declared range become null. Rows are never dropped for a
// bad number.
func Clean(raw model.RawTable, role model.SchemaRole, rules Rules) (model.CleanedTable, CleanStats, error) {
	layout, ok := rules.Role(role)
	if !ok {
		return model.CleanedTable{}, CleanStats{}, eris.Errorf("transform: no rules for %s table", role)
	}
	if !raw.HasColumn(layout.LabelColumn) {
		return model.CleanedTable{}, CleanStats{}, &SchemaError{Role: role, Column: layout.LabelColumn}
	}

	columns := numericColumns(raw.Columns, layout, rules.CategoryColumn())
	stats := CleanStats{
		Role:             role,
		RowsIn:           len(raw.Rows),
		CoercionFailures: map[string]int{},
		RangeViolations:  map[string]int{},
	}
	out := model.CleanedTable{
		CategoryColumn: rules.CategoryColumn(),
		Columns:        columns,
		Rows:           make([]model.CleanedRow, 0, len(raw.Rows)),
	}

	for _, row := range raw.Rows {
		label, _ := row.Value(layout.LabelColumn)
		category, ok := rules.NormalizeCategory(label)
		if !ok {
			stats.DroppedNoCategory++
			continue
		}

		values := make([]sql.NullFloat64, len(columns))
		for i, col := range columns {
			cell, present := row.Value(col)
			if !present {
				continue
			}
			v, ok := parseNumber(cell)
			if !ok {
				stats.CoercionFailures[col]++
				continue
			}
			if rg, declared := rules.Range(col); declared && !rg.Contains(v) {
				stats.RangeViolations[col]++
				continue
			}
			values[i] = sql.NullFloat64{Float64: v, Valid: true}
		}
		out.Rows = append(out.Rows, model.CleanedRow{Category: category, Values: values})
	}

	stats.RowsOut = len(out.Rows)
	return out, stats, nil
}

// numericColumns lists the columns to coerce, in raw header order.
func numericColumns(header []string, layout RoleSpec, category string) []string {
	var cols []string
	for _, col := range header {
		if slices.Contains(cols, col) {
			continue
		}
		if len(layout.NumericColumns) > 0 {
			if slices.Contains(layout.NumericColumns, col) {
				cols = append(cols, col)
			}
			continue
		}
		if col == layout.LabelColumn || col == category || col == "" || slices.Contains(layout.IdentifierColumns, col) {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// LogStats writes the cleaning counts to log, one warning per affected column.
func LogStats(log *zap.Logger, stats CleanStats) {
	log.Info("cleaned table",
		zap.String("role", string(stats.Role)),
		zap.Int("rows_in", stats.RowsIn),
		zap.Int("rows_out", stats.RowsOut),
		zap.Int("dropped_no_genre", stats.DroppedNoCategory),
	)
	for _, col := range sortedKeys(stats.CoercionFailures) {
		log.Warn("non-numeric values set to null",
			zap.String("role", string(stats.Role)),
			zap.String("column", col),
			zap.Int("count", stats.CoercionFailures[col]),
		)
	}
	for _, col := range sortedKeys(stats.RangeViolations) {
		log.Warn("out-of-range values set to null",
			zap.String("role", string(stats.Role)),
			zap.String("column", col),
			zap.Int("count", stats.RangeViolations[col]),
		)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
