package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/musicdw/internal/model"
)

// MetricsSnapshot is a view of recent pipeline health built from run history.
type MetricsSnapshot struct {
	Runs      int     `json:"runs"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Running   int     `json:"running"`
	FailRate  float64 `json:"fail_rate"`

	// FailureStreak counts failed runs since the last success, newest first.
	FailureStreak int `json:"failure_streak"`

	// StepFailures counts failed runs by the step that stopped them.
	StepFailures map[string]int `json:"step_failures,omitempty"`

	LastRun     *model.Run `json:"last_run,omitempty"`
	LastFailure *model.Run `json:"last_failure,omitempty"`

	Window      int       `json:"window"`
	CollectedAt time.Time `json:"collected_at"`
}

// RunLister is the part of the run history store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// Collector summarizes the run history.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect summarizes the newest window runs.
func (c *Collector) Collect(ctx context.Context, window int) (*MetricsSnapshot, error) {
	runs, err := c.runs.ListRuns(ctx, window)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	return Summarize(runs, window), nil
}

// Summarize builds a snapshot from runs ordered newest first.
func Summarize(runs []model.Run, window int) *MetricsSnapshot {
	snap := &MetricsSnapshot{
		Runs:         len(runs),
		StepFailures: make(map[string]int),
		Window:       window,
		CollectedAt:  time.Now().UTC(),
	}

	streakOpen := true
	for i := range runs {
		r := runs[i]
		if i == 0 {
			snap.LastRun = &r
		}
		switch r.Status {
		case model.RunStatusSuccess:
			snap.Succeeded++
			streakOpen = false
		case model.RunStatusFailed:
			snap.Failed++
			if r.FailedStep != "" {
				snap.StepFailures[r.FailedStep]++
			}
			if snap.LastFailure == nil {
				snap.LastFailure = &r
			}
			if streakOpen {
				snap.FailureStreak++
			}
		default:
			snap.Running++
		}
	}

	if finished := snap.Succeeded + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	return snap
}
