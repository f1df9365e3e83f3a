package main

import (
	"errors"

	apperrors "twin/internal/errors"
)

// Exit codes returned to scripts.
const (
	exitFailure = 1
	exitConfig  = 2
)

// ExitCodeError wraps an error with a specific process exit code.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func exitCode(err error) int {
	var coded *ExitCodeError
	if errors.As(err, &coded) && coded.Code != 0 {
		return coded.Code
	}
	if apperrors.IsConfiguration(err) {
		return exitConfig
	}
	return exitFailure
}
