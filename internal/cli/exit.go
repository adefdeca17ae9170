package cli

import (
	"context"
	"errors"

	"github.com/unapproachable/fairgame-fork/internal/engine"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfig      = 2
	ExitSession     = 3
	ExitInterrupted = 130
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, engine.ErrConfig), errors.Is(err, engine.ErrCartNotEmpty):
		return ExitConfig
	case errors.Is(err, engine.ErrSessionFatal):
		return ExitSession
	default:
		return ExitError
	}
}
