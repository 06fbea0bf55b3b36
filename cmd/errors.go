package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/shared"
)

// Process exit codes.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitToolMissing = 3
	exitInterrupted = 130
)

const toolMissingHint = "install Python 3 and the collaborator requirements (pip install -r requirements.txt), " +
	"or point collaborators.python_path / PYTHON_PATH at an interpreter"

// exitCode logs err with an actionable message and returns the exit status.
func exitCode(logger *log.Logger, err error) int {
	if reason, ok := reference.ReasonOf(err); ok {
		logger.Error("invalid reference", "reason", reason, "error", err)
		return exitUsage
	}

	switch {
	case errors.Is(err, shared.ErrToolNotInstalled):
		logger.Error("a required tool is not installed", "error", err)
		logger.Info(toolMissingHint)
		return exitToolMissing
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted")
		return exitInterrupted
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		logger.Error("usage error", "error", err)
		return exitUsage
	default:
		logger.Error("application error", "error", err)
		return exitFailure
	}
}
