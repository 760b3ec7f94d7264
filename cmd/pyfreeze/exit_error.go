package main

import (
	"errors"
	"fmt"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code  int
	Err   error
	Usage bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: exitUsage, Err: err, Usage: true}
}

func fatal(err error) error {
	return &ExitError{Code: exitError, Err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitError
}
