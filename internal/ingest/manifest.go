// Package ingest checks and acquires the raw input files.
package ingest

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest maps a raw file name to the columns its header must contain.
type Manifest map[string][]string

// DefaultManifest is the manifest for the two raw datasets.
func DefaultManifest() Manifest {
	return Manifest{
		"dataset.csv":             {"filename", "label"},
		"mxmh_survey_results.csv": {"Age", "Fav genre"},
	}
}

// Files returns the manifest's file names in sorted order.
func (m Manifest) Files() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadManifest reads a YAML manifest.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse manifest %s", path)
	}
	if len(m) == 0 {
		return nil, eris.Errorf("ingest: manifest %s lists no files", path)
	}
	return m, nil
}

// ManifestExists reports whether path names a manifest file.
func ManifestExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "ingest: stat manifest %s", path)
	}
	return !info.IsDir(), nil
}

// WriteManifest writes m as YAML.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "ingest: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write manifest %s", path)
	}
	return nil
}
