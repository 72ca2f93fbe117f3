package fetcher

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/musicdw/internal/model"
)

// ReadTable loads a raw table from a .csv or .xlsx file. Cells are kept as
// text; short rows leave their trailing columns absent.
func ReadTable(path string) (model.RawTable, error) {
	var header []string
	var records [][]string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return model.RawTable{}, err
		}
		if len(rows) == 0 {
			return model.RawTable{}, eris.Errorf("fetcher: %s has no header row", path)
		}
		header, records = rows[0], rows[1:]
	default:
		f, err := os.Open(path)
		if err != nil {
			return model.RawTable{}, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		header, records, err = ReadCSV(f, CSVOptions{})
		if err != nil {
			return model.RawTable{}, eris.Wrapf(err, "fetcher: read %s", path)
		}
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := model.RawTable{Columns: header, Rows: make([]model.RawRow, 0, len(records))}
	for _, rec := range records {
		if blankRecord(rec) {
			continue
		}
		row := make(model.RawRow, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadHeader returns the trimmed column names of a .csv or .xlsx file
// without reading its data rows.
func ReadHeader(path string) ([]string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		rows, err := ReadXLSX(path, XLSXOptions{RowLimit: 1})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("fetcher: %s has no header row", path)
		}
		header := rows[0]
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
		return header, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, err := ReadCSVHeader(f, CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", path)
	}
	return header, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FormatValue renders a nullable number for an aggregate file; null is empty.
func FormatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// WriteAggregate writes an aggregated table as CSV, creating parent directories.
func WriteAggregate(path string, table model.AggregatedTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "fetcher: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "fetcher: create %s", path)
	}

	header := append([]string{table.CategoryColumn}, table.Columns...)
	rows := make([][]string, len(table.Rows))
	for i, r := range table.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, r.Category)
		for _, v := range r.Values {
			rec = append(rec, FormatValue(v))
		}
		rows[i] = rec
	}

	if err := WriteCSV(f, header, rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "fetcher: close %s", path)
	}
	return nil
}

// ReadAggregate reads a file written by WriteAggregate. Every column other
// than categoryColumn must hold numbers or be empty.
func ReadAggregate(path, categoryColumn string) (model.AggregatedTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.AggregatedTable{}, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, records, err := ReadCSV(f, CSVOptions{})
	if err != nil {
		return model.AggregatedTable{}, eris.Wrapf(err, "fetcher: read %s", path)
	}

	catIdx := -1
	var columns []string
	var colIdx []int
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == categoryColumn {
			catIdx = i
			continue
		}
		columns = append(columns, h)
		colIdx = append(colIdx, i)
	}
	if catIdx < 0 {
		return model.AggregatedTable{}, eris.Errorf("fetcher: %s is missing column %q", path, categoryColumn)
	}

	table := model.AggregatedTable{CategoryColumn: categoryColumn, Columns: columns}
	for line, rec := range records {
		if blankRecord(rec) {
			continue
		}
		row := model.AggregatedRow{Category: cell(rec, catIdx), Values: make([]sql.NullFloat64, len(colIdx))}
		for j, idx := range colIdx {
			raw := strings.TrimSpace(cell(rec, idx))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return model.AggregatedTable{}, eris.Errorf("fetcher: %s row %d: column %q has non-numeric value %q", path, line+2, columns[j], raw)
			}
			row.Values[j] = sql.NullFloat64{Float64: v, Valid: true}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
