// Package pipeline runs the ETL stages in order and stops at the first
// failing stage.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"time"
)

// StepResult is what a step reports back: its completion status and the
// text it wrote to each stream.
type StepResult struct {
	Status   int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Step is one stage of the pipeline, run as an atomic pass/fail unit.
type Step interface {
	Name() string
	Run(ctx context.Context) StepResult
}

// Optional is implemented by steps that may be absent from an install.
// Unavailable steps are skipped.
type Optional interface {
	Available() bool
}

// ExecStep runs a stage as a separate process.
type ExecStep struct {
	name    string
	command string
	args    []string

	// Requires, when set, is a path that must exist for the step to run.
	Requires string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// NewExecStep returns a step named name that runs command with args.
func NewExecStep(name, command string, args ...string) *ExecStep {
	return &ExecStep{name: name, command: command, args: args}
}

func (s *ExecStep) Name() string { return s.name }

// Available reports whether the Requires path exists.
func (s *ExecStep) Available() bool {
	if s.Requires == "" {
		return true
	}
	_, err := os.Stat(s.Requires)
	return !errors.Is(err, fs.ErrNotExist)
}

// Run starts the process and waits for it. A process that cannot be started
// reports status 127 with the start error as stderr. A process killed by ctx
// reports TimedOut and status 1 unless it exited with its own status.
func (s *ExecStep) Run(ctx context.Context) StepResult {
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := StepResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res
	}

	if ctx.Err() != nil {
		res.TimedOut = true
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() > 0:
		res.Status = exitErr.ExitCode()
	case errors.As(err, &exitErr) || res.TimedOut:
		res.Status = 1
	default:
		res.Status = 127
		if res.Stderr == "" {
			res.Stderr = err.Error()
		}
	}
	return res
}

// FuncStep adapts an in-process function to a Step.
type FuncStep struct {
	StepName string
	Fn       func(ctx context.Context) StepResult
	// Present, when set, decides availability.
	Present func() bool
}

func (s FuncStep) Name() string { return s.StepName }

func (s FuncStep) Run(ctx context.Context) StepResult { return s.Fn(ctx) }

func (s FuncStep) Available() bool {
	if s.Present == nil {
		return true
	}
	return s.Present()
}
