// Package cliutil holds the small pieces shared by every cobra command:
// the ExitError type and the mapping from regerr sentinel kinds to the
// process exit codes named in §6.
package cliutil

import (
	"errors"
	"fmt"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// Exit codes per §6: 0 success; 1 user error (parse/validation); 2 remote
// not found; 3 auth failure; 4 integrity failure; 5 I/O failure.
const (
	ExitSuccess        = 0
	ExitUserError      = 1
	ExitRemoteNotFound = 2
	ExitAuthFailure    = 3
	ExitIntegrity      = 4
	ExitIOFailure      = 5
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ClassifyExitCode maps err to the exit code named in §6 by walking its
// wrap chain for the regerr sentinel kinds. Unrecognized errors default
// to ExitUserError.
func ClassifyExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, regerr.ErrImageNotFound):
		return ExitRemoteNotFound
	case errors.Is(err, regerr.ErrUnauthorized), errors.Is(err, regerr.ErrAuthFailure):
		return ExitAuthFailure
	case errors.Is(err, regerr.ErrDigestMismatch),
		errors.Is(err, regerr.ErrInvalidManifest),
		errors.Is(err, regerr.ErrUnsupportedMediaType),
		errors.Is(err, regerr.ErrMalformedChallenge):
		return ExitIntegrity
	case errors.Is(err, regerr.ErrIOError):
		return ExitIOFailure
	case errors.Is(err, regerr.ErrInvalidReference),
		errors.Is(err, regerr.ErrPlatformNotAvailable),
		errors.Is(err, regerr.ErrCancelled):
		return ExitUserError
	case errors.Is(err, regerr.ErrNetworkError):
		return ExitIOFailure
	default:
		return ExitUserError
	}
}

// Wrap pins err to code, for callers that already know the right exit
// code (flag validation, explicit user errors) rather than relying on
// sentinel classification.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}
