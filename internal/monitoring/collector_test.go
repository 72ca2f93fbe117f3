package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/musicdw/internal/model"
)

type mockRuns struct {
	runs    []model.Run
	limit   int
	listErr error
}

func (m *mockRuns) ListRuns(_ context.Context, limit int) ([]model.Run, error) {
	m.limit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > 0 && len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func run(id string, status model.RunStatus, failedStep string) model.Run {
	return model.Run{ID: id, Status: status, FailedStep: failedStep}
}

func TestCollector_Collect(t *testing.T) {
	runs := &mockRuns{runs: []model.Run{
		run("r6", model.RunStatusRunning, ""),
		run("r5", model.RunStatusFailed, "transform"),
		run("r4", model.RunStatusFailed, "load"),
		run("r3", model.RunStatusSuccess, ""),
		run("r2", model.RunStatusFailed, "transform"),
		run("r1", model.RunStatusSuccess, ""),
	}}

	snap, err := NewCollector(runs).Collect(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, runs.limit)

	assert.Equal(t, 6, snap.Runs)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 3, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 0.6, snap.FailRate, 1e-9)
	assert.Equal(t, 2, snap.FailureStreak)
	assert.Equal(t, map[string]int{"transform": 2, "load": 1}, snap.StepFailures)
	require.NotNil(t, snap.LastRun)
	assert.Equal(t, "r6", snap.LastRun.ID)
	require.NotNil(t, snap.LastFailure)
	assert.Equal(t, "r5", snap.LastFailure.ID)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(&mockRuns{}).Collect(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, snap.Runs)
	assert.Zero(t, snap.FailRate)
	assert.Nil(t, snap.LastRun)
	assert.Nil(t, snap.LastFailure)
}

func TestCollector_ListError(t *testing.T) {
	_, err := NewCollector(&mockRuns{listErr: errors.New("db down")}).Collect(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
