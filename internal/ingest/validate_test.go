package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "dataset.csv", "filename,label,tempo\na.wav,Rock,120\n")
	writeRaw(t, dir, "mxmh_survey_results.csv", "Age,Fav genre,Anxiety\n20,Pop,3\n")

	report := Validate(dir, DefaultManifest())
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"dataset.csv", "mxmh_survey_results.csv"}, report.Checked)
}

func TestValidate_Problems(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "dataset.csv", "")
	writeRaw(t, dir, "mxmh_survey_results.csv", "Age,Anxiety\n20,3\n")

	m := DefaultManifest()
	m["extra.csv"] = nil

	report := Validate(dir, m)
	require.False(t, report.OK())
	assert.Equal(t, []Problem{
		{File: "dataset.csv", Message: "file is empty"},
		{File: "extra.csv", Message: "file not found"},
		{File: "mxmh_survey_results.csv", Message: "missing column Fav genre"},
	}, report.Problems)

	err := report.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mxmh_survey_results.csv: missing column Fav genre")
}

func TestValidate_XLSXHeader(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "survey.xlsx", "not really a workbook")

	report := Validate(dir, Manifest{"survey.xlsx": {"Age"}})
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0].Message, "read header")
}

func TestValidate_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "dataset.csv", "filename,label\n")
	writeRaw(t, dir, "mxmh_survey_results.csv", "\ufeffAge, Fav genre ,Anxiety\n")

	report := Validate(dir, DefaultManifest())
	assert.True(t, report.OK(), "%v", report.Problems)
}

func TestValidate_NoRequiredColumns(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "notes.txt", "anything")

	report := Validate(dir, Manifest{"notes.txt": {}})
	assert.True(t, report.OK())
}
