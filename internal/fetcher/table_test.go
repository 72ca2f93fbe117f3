package fetcher

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/musicdw/internal/model"
)

func TestReadTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, writeTestFile(path, " filename ,label,tempo\na.wav,Rock,120\n,,\nb.wav,Pop\n"))

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"filename", "label", "tempo"}, table.Columns)
	require.Len(t, table.Rows, 2, "blank rows are skipped")

	assert.Equal(t, "Rock", table.Rows[0]["label"])
	_, ok := table.Rows[1].Value("tempo")
	assert.False(t, ok, "short rows leave trailing columns missing")
}

func TestReadTable_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Age", "Fav genre"},
			{"18", "Hip Hop"},
		},
	})

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.True(t, table.HasColumn("Fav genre"))
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Hip Hop", table.Rows[0]["Fav genre"])
}

func TestReadTable_MissingFile(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, writeTestFile(path, " filename ,label,tempo\na.wav,Rock,120\n"))

	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"filename", "label", "tempo"}, header)
}

func TestReadHeader_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Age ", "Fav genre"},
			{"18", "Hip Hop"},
			{"40", "Rock"},
		},
	})

	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "Fav genre"}, header)
}

func TestReadHeader_MissingFile(t *testing.T) {
	_, err := ReadHeader(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestWriteAndReadAggregate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "music_features_by_genre.csv")
	table := model.AggregatedTable{
		CategoryColumn: "genre",
		Columns:        []string{"tempo", "energy"},
		Rows: []model.AggregatedRow{
			{Category: "hip-hop", Values: []sql.NullFloat64{{Float64: 20, Valid: true}, {}}},
			{Category: "rock", Values: []sql.NullFloat64{{Float64: 120.25, Valid: true}, {Float64: 0.5, Valid: true}}},
		},
	}

	require.NoError(t, WriteAggregate(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "genre,tempo,energy\nhip-hop,20,\nrock,120.25,0.5\n", string(data))

	got, err := ReadAggregate(path, "genre")
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestReadAggregate_MissingCategoryColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.csv")
	require.NoError(t, writeTestFile(path, "label,tempo\nrock,1\n"))

	_, err := ReadAggregate(path, "genre")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "genre"`)
}

func TestReadAggregate_NonNumericCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.csv")
	require.NoError(t, writeTestFile(path, "genre,tempo\nrock,fast\n"))

	_, err := ReadAggregate(path, "genre")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row 2: column "tempo" has non-numeric value "fast"`)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(sql.NullFloat64{}))
	assert.Equal(t, "0", FormatValue(sql.NullFloat64{Valid: true}))
	assert.Equal(t, "1.5", FormatValue(sql.NullFloat64{Float64: 1.5, Valid: true}))
}
