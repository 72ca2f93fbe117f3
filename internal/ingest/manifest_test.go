package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	assert.Equal(t, []string{"dataset.csv", "mxmh_survey_results.csv"}, m.Files())
	assert.Equal(t, []string{"Age", "Fav genre"}, m["mxmh_survey_results.csv"])
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataset.csv: [filename, label]
mxmh_survey_results.csv:
  - Age
  - Fav genre
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultManifest(), m)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "lists no files"},
		{"not a map", "- a\n- b\n", "parse manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestManifestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	ok, err := ManifestExists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteManifest(path, DefaultManifest()))
	ok, err = ManifestExists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ManifestExists(dir)
	require.NoError(t, err)
	assert.False(t, ok, "a directory is not a manifest")

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultManifest(), m)
}
