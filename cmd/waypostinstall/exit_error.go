// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/wayposthq/waypost-installer/internal/artifact"
	"github.com/wayposthq/waypost-installer/internal/bootstrap"
	"github.com/wayposthq/waypost-installer/internal/config"
	"github.com/wayposthq/waypost-installer/internal/install"
	"github.com/wayposthq/waypost-installer/internal/pathenv"
	"github.com/wayposthq/waypost-installer/internal/platform"
	"github.com/wayposthq/waypost-installer/internal/release"
)

// Process exit codes. Scripts driving the installer branch on these, so the
// values are part of the CLI contract.
const (
	ExitOK                  = 0
	ExitGeneric             = 1
	ExitUnsupportedPlatform = 2
	ExitVersionResolve      = 3
	ExitDownload            = 4
	ExitExtraction          = 5
	ExitTransaction         = 6
	ExitDependencyMissing   = 7
	ExitMigration           = 8
	ExitPermissionDenied    = 9
	ExitLockHeld            = 10
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// classifyExitCode maps an install error to the process exit code. The
// sentinel errors of each stage identify which stage failed; anything
// unclassified (including config errors) is a generic failure.
func classifyExitCode(err error) int {
	switch {
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return ExitUnsupportedPlatform
	case errors.Is(err, release.ErrIndexUnreachable),
		errors.Is(err, release.ErrVersionUnresolved):
		return ExitVersionResolve
	case errors.Is(err, artifact.ErrDownload):
		return ExitDownload
	case errors.Is(err, artifact.ErrExtraction),
		errors.Is(err, artifact.ErrChecksumMismatch),
		errors.Is(err, artifact.ErrChecksumNotListed):
		return ExitExtraction
	case errors.Is(err, install.ErrSwapFailed),
		errors.Is(err, install.ErrRestoreFailed):
		return ExitTransaction
	case errors.Is(err, bootstrap.ErrDependencyMissing):
		return ExitDependencyMissing
	case errors.Is(err, bootstrap.ErrMigrationFailed),
		errors.Is(err, bootstrap.ErrSeedFailed):
		return ExitMigration
	case errors.Is(err, pathenv.ErrPermissionDenied):
		return ExitPermissionDenied
	case errors.Is(err, install.ErrLockHeld):
		return ExitLockHeld
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitGeneric
	default:
		return ExitGeneric
	}
}
