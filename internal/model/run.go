package model

import "time"

// RunStatus is the orchestrator state of a pipeline run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// StepStatus is the outcome of a single pipeline step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Run is one invocation of the pipeline orchestrator.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	FailedStep string     `json:"failed_step,omitempty"`
	ExitStatus int        `json:"exit_status"`
	Clean      bool       `json:"clean"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StepRecord is the persisted outcome of one step within a run.
type StepRecord struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	ExitStatus int        `json:"exit_status"`
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}
