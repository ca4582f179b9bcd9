// Package forgeerrors contains the error kinds returned while orchestrating a Forge run.
//
// Errors fall into three groups. Run failures (ErrRunFailure) are expected and end up in the
// FAIL state of a result. Preflight failures (ErrCredentials, ErrNotFound, ErrInvalidArgument)
// are user-actionable and stop the invocation before a run starts. Fatal errors
// (ErrInvariantViolation, ErrPollingExhausted, ErrAmbiguousCluster) indicate a bug or broken
// infrastructure in the orchestration itself; use IsFatal to detect them through wrapped chains.
package forgeerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRunFailure is returned when a subprocess exits with a non-zero status and the caller
// asked for its output with RunResult.Unwrap.
type ErrRunFailure struct {
	// Exit code of the subprocess.
	ExitCode int
	// Decoded combined output of the subprocess.
	Output string
}

func (err *ErrRunFailure) Error() string {
	return err.Output
}

// ErrCredentials is returned when cloud credentials are missing, malformed or expired.
type ErrCredentials struct {
	Message string
}

func (err *ErrCredentials) Error() string {
	return err.Message
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "image"
	Value   string // Resource name, e.g., an image tag
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "FORGE_RUNNER_MODE"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrInvariantViolation is returned when a result leaves its scoped block without a terminal
// state or without recorded output. This is always a bug in a runner.
type ErrInvariantViolation struct {
	Message string
}

func (err *ErrInvariantViolation) Error() string {
	return err.Message
}

// ErrPollingExhausted is returned when the pod phase never resolved within the attempt budget.
type ErrPollingExhausted struct {
	Pod      string
	Attempts uint
}

func (err *ErrPollingExhausted) Error() string {
	return fmt.Sprintf("exhausted %d attempts to get the phase of forge pod %s", err.Attempts, err.Pod)
}

// ErrAmbiguousCluster is returned when the cluster name cannot be derived from the current
// kubeconfig context.
type ErrAmbiguousCluster struct {
	Context string
}

func (err *ErrAmbiguousCluster) Error() string {
	return fmt.Sprintf("could not determine current cluster name: %q", err.Context)
}

// IsFatal returns true if err, or any error it wraps, is one of the fatal kinds.
// Uses errors.As to look through the chain of errors.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	{
		var e *ErrInvariantViolation
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrPollingExhausted
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrAmbiguousCluster
		if errors.As(err, &e) {
			return true
		}
	}
	return false
}
