package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/desertthunder/songrip/internal/shared"
)

const stderrTail = 512

// ProcessResult is the captured output of a finished collaborator process.
type ProcessResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// ProcessRunner spawns an external program and waits for it to exit.
//
// Implementations return [shared.ErrToolNotInstalled] when the program cannot be
// started and [shared.ErrCollaboratorFailed] on a non-zero exit. Output written to
// stderr by a process that exits zero is not an error.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args ...string) (*ProcessResult, error)
}

// ExecRunner runs processes with [exec.CommandContext].
type ExecRunner struct {
	Timeout time.Duration // per process; zero means none
	Dir     string
}

// Run implements [ProcessRunner].
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (*ProcessResult, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Elapsed:  time.Since(start),
	}
	if err == nil {
		return res, nil
	}
	return res, classifyRunError(ctx, name, res, err)
}

func classifyRunError(ctx context.Context, name string, res *ProcessResult, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrCollaboratorFailed, name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Program: name, Code: exitErr.ExitCode(), Stderr: tail(res.Stderr), Stdout: res.Stdout}
	}

	var execErr *exec.Error
	var pathErr *fs.PathError
	if errors.As(err, &execErr) || errors.As(err, &pathErr) || errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s: %v", shared.ErrToolNotInstalled, name, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrCollaboratorFailed, name, err)
}

// ExitError reports a collaborator that exited non-zero.
type ExitError struct {
	Program string
	Code    int
	Stderr  string
	Stdout  []byte
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Program, e.Code, e.Stderr)
}

func (e *ExitError) Unwrap() error { return shared.ErrCollaboratorFailed }

// tail keeps the last stderrTail bytes of b, trimmed.
func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
