package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/fetcher"
)

// Problem is one failed check against a raw file.
type Problem struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.File, p.Message)
}

// Report is the outcome of validating a raw directory.
type Report struct {
	Checked  []string  `json:"checked"`
	Problems []Problem `json:"problems,omitempty"`
}

// OK reports whether every file passed.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Err returns nil when the report is OK, otherwise an error listing every
// problem.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		msgs[i] = p.String()
	}
	return errors.New("ingest: " + strings.Join(msgs, "; "))
}

func (r *Report) fail(file, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{File: file, Message: fmt.Sprintf(format, args...)})
}

// Validate checks that every manifest file exists under rawDir, is not
// empty, and has the required columns. Every file is checked even after a
// failure.
func Validate(rawDir string, m Manifest) *Report {
	log := zap.L().With(zap.String("component", "ingest"))
	report := &Report{}

	for _, name := range m.Files() {
		report.Checked = append(report.Checked, name)
		path := filepath.Join(rawDir, name)

		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Error(fmt.Sprintf("Missing file: %s", path))
			report.fail(name, "file not found")
			continue
		case err != nil:
			log.Error(fmt.Sprintf("Cannot stat file: %s", path), zap.Error(err))
			report.fail(name, "stat: %v", err)
			continue
		case info.Size() == 0:
			log.Error(fmt.Sprintf("File is empty: %s", path))
			report.fail(name, "file is empty")
			continue
		}
		log.Info(fmt.Sprintf("Found file: %s (%d bytes)", path, info.Size()))

		required := m[name]
		if len(required) == 0 {
			continue
		}
		header, err := fetcher.ReadHeader(path)
		if err != nil {
			log.Error(fmt.Sprintf("Error validating columns for %s", path), zap.Error(err))
			report.fail(name, "read header: %v", err)
			continue
		}
		var missing []string
		for _, col := range required {
			if !slices.Contains(header, col) {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			log.Error(fmt.Sprintf("%s missing columns: %s", name, strings.Join(missing, ", ")),
				zap.Strings("found", header))
			for _, col := range missing {
				report.fail(name, "missing column %s", col)
			}
			continue
		}
		log.Info(fmt.Sprintf("Columns validated for %s", name))
	}

	return report
}
