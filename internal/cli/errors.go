// Package cli provides shared configuration and utilities for the tree
// binaries.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/meikuraledutech/tree"
)

// Exit codes.
const (
	ExitSuccess   = 0
	ExitGeneral   = 1
	ExitConfig    = 2
	ExitDBConnect = 3
	ExitRejected  = 4
	ExitCorrupt   = 5
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitWithError prints the error and exits with the appropriate code.
func ExitWithError(err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitGeneral)
}

// ConfigError creates an ExitError with ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// DBConnectError creates an ExitError with ExitDBConnect code.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// CorruptError creates an ExitError with ExitCorrupt code.
func CorruptError(msg string) *ExitError {
	return &ExitError{Code: ExitCorrupt, Message: msg}
}

// OpError maps an engine error to an ExitError. Rejected operations get
// ExitRejected, everything else ExitGeneral.
func OpError(msg string, err error) *ExitError {
	if errors.Is(err, tree.ErrInvalidOperation) || errors.Is(err, tree.ErrNodeNotFound) || errors.Is(err, tree.ErrNodeExists) {
		return &ExitError{Code: ExitRejected, Message: msg, Err: err}
	}
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
