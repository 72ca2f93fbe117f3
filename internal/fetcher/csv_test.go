package fetcher

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "genre,tempo,energy\nrock,120.5,0.8\npop,98,\n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"genre", "tempo", "energy"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"pop", "98", ""}, rows[1])
}

func TestReadCSV_StripsBOM(t *testing.T) {
	input := "\ufefffilename,label\na.wav,jazz\n"

	header, _, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "filename", header[0])
}

func TestReadCSV_Options(t *testing.T) {
	input := "a; b\n 1 ; 2 \n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{Delimiter: ';', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
}

func TestReadCSV_RaggedRows(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"

	_, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Len(t, rows[0], 1)
	assert.Len(t, rows[1], 4)
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}

func TestWriteCSV_QuotesFields(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"genre", "note"}, [][]string{{"r&b", "a, b"}})
	require.NoError(t, err)
	assert.Equal(t, "genre,note\nr&b,\"a, b\"\n", buf.String())
}

func TestReadCSVHeader_StopsAfterFirstRecord(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("\ufeff filename ,label\n"),
		iotest.ErrReader(errors.New("data rows must not be read")),
	)

	header, err := ReadCSVHeader(r, CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"filename", "label"}, header)
}

func TestReadCSVHeader_Empty(t *testing.T) {
	_, err := ReadCSVHeader(strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: empty input")
}
