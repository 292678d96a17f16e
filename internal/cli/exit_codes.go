package cli

import (
	clierrors "github.com/ariel-frischer/specrunner/internal/errors"
)

// Exit codes for the specrunner CLI (spec.md §6.5).
const (
	// ExitSuccess: all executed tests passed, no flakes, no demotions.
	ExitSuccess = 0
	// ExitFailure: any failure, any demotion, any classified flake, any
	// judgement error.
	ExitFailure = 1
	// ExitInvalid: invalid manifest / invalid arguments / unrecoverable config.
	ExitInvalid = 2
)

// exitCodeFor maps an error category to §6.5's exit code. Argument and
// Configuration errors are "invalid manifest / invalid arguments /
// unrecoverable config" (exit 2); Prerequisite and Runtime errors surface
// as ordinary failures (exit 1) since they're reported per-test or
// per-subcommand rather than aborting the whole invocation.
func exitCodeFor(category clierrors.ErrorCategory) int {
	switch category {
	case clierrors.Argument, clierrors.Configuration:
		return ExitInvalid
	default:
		return ExitFailure
	}
}
