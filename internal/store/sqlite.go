package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/musicdw/internal/model"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("store: run not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the run history database, creating its directory, and
// configures WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "sqlite: create directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	failed_step TEXT NOT NULL DEFAULT '',
	exit_status INTEGER NOT NULL DEFAULT 0,
	clean       BOOLEAN NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS pipeline_steps (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES pipeline_runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	exit_status INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_pipeline_steps_run_id ON pipeline_steps(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, clean bool) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		Clean:     clean,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, status, clean, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Clean, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, failedStep string, exitStatus int) error {
	if !status.Terminal() {
		return eris.Errorf("sqlite: finish run %s with non-terminal status %q", runID, status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, failed_step = ?, exit_status = ?, finished_at = ? WHERE id = ?`,
		string(status), failedStep, exitStatus, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) RecordStep(ctx context.Context, rec model.StepRecord) (*model.StepRecord, error) {
	rec.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_steps (id, run_id, name, status, exit_status, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Name, string(rec.Status), rec.ExitStatus, rec.Message,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert step %s for run %s", rec.Name, rec.RunID)
	}
	return &rec, nil
}

const runColumns = `id, status, failed_step, exit_status, clean, started_at, finished_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs iterate")
	}
	return runs, nil
}

func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, exit_status, message, started_at, finished_at
		 FROM pipeline_steps WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list steps for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var steps []model.StepRecord
	for rows.Next() {
		var st model.StepRecord
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &st.Status, &st.ExitStatus, &st.Message, &st.StartedAt, &st.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan step")
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list steps iterate")
	}
	return steps, nil
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "sqlite: run %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &r.FailedStep, &r.ExitStatus, &r.Clean, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
