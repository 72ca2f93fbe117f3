package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/model"
	"github.com/sells-group/musicdw/internal/monitoring"
)

// StepFailure is returned when a step completes with a non-zero status.
type StepFailure struct {
	Step    string
	Status  int
	Message string
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("pipeline: step %s failed with status %d: %s", e.Step, e.Status, e.Message)
}

// ExitCode is the process exit status for the failure.
func (e *StepFailure) ExitCode() int {
	if e.Status <= 0 {
		return 1
	}
	return e.Status
}

// Recorder persists run and step outcomes. store.Store satisfies it.
type Recorder interface {
	CreateRun(ctx context.Context, clean bool) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, failedStep string, exitStatus int) error
	RecordStep(ctx context.Context, rec model.StepRecord) (*model.StepRecord, error)
}

// Alerter delivers failure alerts. *monitoring.Alerter satisfies it.
type Alerter interface {
	Raise(ctx context.Context, alert monitoring.Alert) error
}

// Options configures an orchestrator run.
type Options struct {
	// Clean removes derived outputs before any step runs.
	Clean         bool
	ProcessedDir  string
	WarehousePath string

	// StepTimeout bounds each step; zero means no limit.
	StepTimeout time.Duration

	// LockFile, when set, prevents overlapping runs.
	LockFile string
}

// StepOutcome is the result of one step within a run.
type StepOutcome struct {
	Name       string           `json:"name"`
	Status     model.StepStatus `json:"status"`
	ExitStatus int              `json:"exit_status"`
	Message    string           `json:"message,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Outcome summarizes a pipeline run.
type Outcome struct {
	RunID      string          `json:"run_id,omitempty"`
	Status     model.RunStatus `json:"status"`
	FailedStep string          `json:"failed_step,omitempty"`
	ExitStatus int             `json:"exit_status"`
	Steps      []StepOutcome   `json:"steps"`
}

// Orchestrator runs steps strictly in order.
type Orchestrator struct {
	steps    []Step
	opts     Options
	recorder Recorder
	alerter  Alerter
}

// New creates an Orchestrator. recorder and alerter may be nil.
func New(steps []Step, opts Options, recorder Recorder, alerter Alerter) *Orchestrator {
	return &Orchestrator{steps: steps, opts: opts, recorder: recorder, alerter: alerter}
}

// Run executes the pipeline. The run moves from pending to running, then to
// success when every step exits zero, or to failed at the first step that
// does not. A failed step yields a *StepFailure error alongside the outcome.
// Cancelling ctx stops the run before the next step; a running step is
// never interrupted except by StepTimeout.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	out := &Outcome{Status: model.RunStatusPending}

	if o.opts.LockFile != "" {
		unlock, err := acquireLock(o.opts.LockFile)
		if err != nil {
			return out, err
		}
		defer unlock()
	}

	if o.opts.Clean {
		if err := CleanOutputs(o.opts.ProcessedDir, o.opts.WarehousePath); err != nil {
			return out, err
		}
		log.Info("Derived outputs removed",
			zap.String("processed_dir", o.opts.ProcessedDir),
			zap.String("warehouse", o.opts.WarehousePath),
		)
	}

	out.RunID = o.createRun(ctx, log)
	out.Status = model.RunStatusRunning

	for _, step := range o.steps {
		if err := ctx.Err(); err != nil {
			out.Status = model.RunStatusFailed
			out.ExitStatus = 1
			o.finishRun(ctx, log, out)
			return out, eris.Wrap(err, "pipeline: cancelled")
		}

		if opt, ok := step.(Optional); ok && !opt.Available() {
			log.Info(fmt.Sprintf("Skipping step: %s (not available)", step.Name()))
			so := StepOutcome{Name: step.Name(), Status: model.StepStatusSkipped}
			out.Steps = append(out.Steps, so)
			o.recordStep(ctx, log, out.RunID, so, time.Now())
			continue
		}

		so, failure := o.runStep(ctx, log, out.RunID, step)
		out.Steps = append(out.Steps, so)

		if failure != nil {
			out.Status = model.RunStatusFailed
			out.FailedStep = failure.Step
			out.ExitStatus = failure.ExitCode()
			o.raise(ctx, log, out.RunID, failure)
			o.finishRun(ctx, log, out)
			return out, failure
		}
	}

	out.Status = model.RunStatusSuccess
	o.finishRun(ctx, log, out)
	log.Info("Pipeline finished successfully", zap.Int("steps", len(out.Steps)))
	return out, nil
}

// runStep executes one step and returns its outcome, plus a failure when the
// step's status is non-zero.
func (o *Orchestrator) runStep(ctx context.Context, log *zap.Logger, runID string, step Step) (StepOutcome, *StepFailure) {
	name := step.Name()
	log.Info(fmt.Sprintf("Running step: %s", name))

	stepCtx := context.WithoutCancel(ctx)
	if o.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, o.opts.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	res := step.Run(stepCtx)
	so := StepOutcome{Name: name, Duration: time.Since(start)}

	if out := strings.TrimSpace(res.Stdout); out != "" {
		log.Info(out)
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		log.Warn(errOut)
	}

	status := res.Status
	if res.TimedOut && status == 0 {
		status = 1
	}
	if status == 0 {
		so.Status = model.StepStatusSucceeded
		o.recordStep(ctx, log, runID, so, start)
		log.Info(fmt.Sprintf("Step finished successfully: %s", name), zap.Duration("duration", so.Duration))
		return so, nil
	}

	so.Status = model.StepStatusFailed
	so.ExitStatus = status
	so.Message = failureMessage(res, status, o.opts.StepTimeout)
	o.recordStep(ctx, log, runID, so, start)
	log.Error(fmt.Sprintf("Step failed: %s", name), zap.Int("status", status))
	return so, &StepFailure{Step: name, Status: status, Message: so.Message}
}

// failureMessage is the captured stderr, or "non-zero status <n>" when the
// step wrote nothing there. Timeouts are noted first.
func failureMessage(res StepResult, status int, timeout time.Duration) string {
	var parts []string
	if res.TimedOut {
		parts = append(parts, fmt.Sprintf("timed out after %s", timeout))
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		parts = append(parts, errOut)
	} else if !res.TimedOut {
		parts = append(parts, fmt.Sprintf("non-zero status %d", status))
	}
	return strings.Join(parts, "; ")
}

// CleanOutputs removes the processed directory and the warehouse file. Paths
// that do not exist are ignored.
func CleanOutputs(processedDir, warehousePath string) error {
	if processedDir != "" {
		if err := os.RemoveAll(processedDir); err != nil {
			return eris.Wrapf(err, "pipeline: remove %s", processedDir)
		}
	}
	if warehousePath == "" {
		return nil
	}
	for _, p := range []string{warehousePath, warehousePath + "-wal", warehousePath + "-shm", warehousePath + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(err, "pipeline: remove %s", p)
		}
	}
	return nil
}

func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create lock dir for %s", path)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: lock %s", path)
	}
	if !locked {
		return nil, eris.Errorf("pipeline: another run holds %s", path)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Recording and alerting failures are logged and never change the outcome.

func (o *Orchestrator) createRun(ctx context.Context, log *zap.Logger) string {
	if o.recorder == nil {
		return ""
	}
	run, err := o.recorder.CreateRun(ctx, o.opts.Clean)
	if err != nil {
		log.Warn("pipeline: failed to create run record", zap.Error(err))
		return ""
	}
	return run.ID
}

func (o *Orchestrator) finishRun(ctx context.Context, log *zap.Logger, out *Outcome) {
	if o.recorder == nil || out.RunID == "" {
		return
	}
	if err := o.recorder.FinishRun(context.WithoutCancel(ctx), out.RunID, out.Status, out.FailedStep, out.ExitStatus); err != nil {
		log.Warn("pipeline: failed to finish run record", zap.String("run_id", out.RunID), zap.Error(err))
	}
}

func (o *Orchestrator) recordStep(ctx context.Context, log *zap.Logger, runID string, so StepOutcome, start time.Time) {
	if o.recorder == nil || runID == "" {
		return
	}
	rec := model.StepRecord{
		RunID:      runID,
		Name:       so.Name,
		Status:     so.Status,
		ExitStatus: so.ExitStatus,
		Message:    so.Message,
		StartedAt:  start,
		FinishedAt: start.Add(so.Duration),
	}
	if _, err := o.recorder.RecordStep(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("pipeline: failed to record step", zap.String("step", so.Name), zap.Error(err))
	}
}

func (o *Orchestrator) raise(ctx context.Context, log *zap.Logger, runID string, failure *StepFailure) {
	if o.alerter == nil {
		log.Error(fmt.Sprintf("PIPELINE FAILED | step=%s | %s", failure.Step, failure.Message))
		return
	}
	alert := monitoring.StepFailure(runID, failure.Step, failure.Status, failure.Message)
	if err := o.alerter.Raise(context.WithoutCancel(ctx), alert); err != nil {
		log.Warn("pipeline: alert delivery failed", zap.String("step", failure.Step), zap.Error(err))
	}
}
