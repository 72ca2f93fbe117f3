package transform

import (
	"database/sql"
	"slices"

	"github.com/sells-group/musicdw/internal/model"
)

// Aggregate groups a cleaned table by category and averages each numeric
// column over its non-null values. A column with no values in a group has
// a null mean. Rows come out sorted by category. Values are summed in
// ascending order so the result does not depend on input row order.
func Aggregate(cleaned model.CleanedTable) model.AggregatedTable {
	groups := make(map[string][][]float64)
	for _, row := range cleaned.Rows {
		cols, ok := groups[row.Category]
		if !ok {
			cols = make([][]float64, len(cleaned.Columns))
			groups[row.Category] = cols
		}
		for i, v := range row.Values {
			if i < len(cols) && v.Valid {
				cols[i] = append(cols[i], v.Float64)
			}
		}
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	out := model.AggregatedTable{
		CategoryColumn: cleaned.CategoryColumn,
		Columns:        slices.Clone(cleaned.Columns),
		Rows:           make([]model.AggregatedRow, 0, len(categories)),
	}
	for _, c := range categories {
		cols := groups[c]
		means := make([]sql.NullFloat64, len(cols))
		for i, vals := range cols {
			means[i] = mean(vals)
		}
		out.Rows = append(out.Rows, model.AggregatedRow{Category: c, Values: means})
	}
	return out
}

func mean(vals []float64) sql.NullFloat64 {
	if len(vals) == 0 {
		return sql.NullFloat64{}
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sql.NullFloat64{Float64: sum / float64(len(sorted)), Valid: true}
}
