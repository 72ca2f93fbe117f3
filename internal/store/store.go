// Package store persists pipeline run history.
package store

import (
	"context"

	"github.com/sells-group/musicdw/internal/model"
)

// Store records pipeline runs and the outcome of each step.
type Store interface {
	// CreateRun starts a run in the running state.
	CreateRun(ctx context.Context, clean bool) (*model.Run, error)
	// FinishRun moves a run to a terminal state.
	FinishRun(ctx context.Context, runID string, status model.RunStatus, failedStep string, exitStatus int) error
	// RecordStep stores one step outcome and assigns its ID.
	RecordStep(ctx context.Context, rec model.StepRecord) (*model.StepRecord, error)

	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
