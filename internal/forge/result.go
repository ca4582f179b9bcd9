package forge

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

// ForgeState is the lifecycle state of a ForgeResult.
type ForgeState string

const (
	StateRunning ForgeState = "RUNNING"
	StatePass    ForgeState = "PASS"
	StateFail    ForgeState = "FAIL"
	StateSkip    ForgeState = "SKIP"
	// StateEmpty marks a result for which no run was attempted, e.g. a pre-run notification.
	StateEmpty ForgeState = "EMPTY"
)

// IsTerminal returns true for the states a run may end in.
func (s ForgeState) IsTerminal() bool {
	switch s {
	case StatePass, StateFail, StateSkip:
		return true
	}
	return false
}

// ForgeResult is the outcome of a single run.
type ForgeResult struct {
	State     ForgeState
	Output    string
	StartTime time.Time
	EndTime   time.Time
	// Set once Output has been recorded, so that an empty output can be told apart from none.
	outputSet bool
}

// NewForgeResult returns a result in the given state with the given output.
func NewForgeResult(state ForgeState, output string) *ForgeResult {
	return &ForgeResult{State: state, Output: output, outputSet: true}
}

// EmptyForgeResult returns the result used for reports that precede a run.
func EmptyForgeResult() *ForgeResult {
	return NewForgeResult(StateEmpty, "")
}

func (r *ForgeResult) SetState(state ForgeState) {
	r.State = state
}

func (r *ForgeResult) SetOutput(output string) {
	r.Output = output
	r.outputSet = true
}

// Format returns the one-line summary of the result, e.g. "Forge passed".
func (r *ForgeResult) Format() string {
	return fmt.Sprintf("Forge %sed", strings.ToLower(string(r.State)))
}

// WithForgeResult runs fn against a fresh result in the RUNNING state. On every exit path,
// including a panic in fn, the end time is stamped and the result is checked: it must be in a
// terminal state and have recorded output, otherwise an *forgeerrors.ErrInvariantViolation is
// returned. If fn also failed, both errors are returned together.
func WithForgeResult(fctx *ForgeContext, fn func(result *ForgeResult) error) (result *ForgeResult, err error) {
	result = &ForgeResult{
		State:     StateRunning,
		StartTime: fctx.Time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic during forge run: %v", r)
		}
		result.EndTime = fctx.Time.Now()
		if violation := result.validate(); violation != nil {
			if err != nil {
				err = multierror.Append(err, violation)
			} else {
				err = violation
			}
		}
	}()
	err = fn(result)
	return result, err
}

func (r *ForgeResult) validate() error {
	if !r.State.IsTerminal() {
		return errors.WithStack(&forgeerrors.ErrInvariantViolation{
			Message: fmt.Sprintf("forge result never entered terminal state, got %s", r.State),
		})
	}
	if !r.outputSet {
		return errors.WithStack(&forgeerrors.ErrInvariantViolation{
			Message: "forge result didn't record output",
		})
	}
	return nil
}
