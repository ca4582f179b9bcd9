// Package capabilities provides the seams a Forge run uses to reach the outside world:
// subprocesses, files, operating system processes and wall-clock time. Each capability has a
// real implementation and a deterministic fake for tests.
package capabilities

import (
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

// RunResult is the outcome of a single Shell.Run call.
type RunResult struct {
	ExitCode int
	// Combined stdout and stderr of the command.
	Output []byte
}

// Unwrap returns the output of a successful command. A non-zero exit code is turned into
// an *forgeerrors.ErrRunFailure carrying the decoded output.
func (r RunResult) Unwrap() ([]byte, error) {
	if r.ExitCode != 0 {
		return nil, &forgeerrors.ErrRunFailure{ExitCode: r.ExitCode, Output: string(r.Output)}
	}
	return r.Output, nil
}
