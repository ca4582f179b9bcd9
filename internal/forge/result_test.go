package forge

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

func TestForgeResultFormat(t *testing.T) {
	tests := map[ForgeState]string{
		StatePass:    "Forge passed",
		StateFail:    "Forge failed",
		StateSkip:    "Forge skiped",
		StateRunning: "Forge runninged",
	}
	for state, expected := range tests {
		t.Run(string(state), func(t *testing.T) {
			assert.Equal(t, expected, NewForgeResult(state, "").Format())
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatePass.IsTerminal())
	assert.True(t, StateFail.IsTerminal())
	assert.True(t, StateSkip.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.False(t, StateEmpty.IsTerminal())
}

func TestWithForgeResult(t *testing.T) {
	tests := map[string]struct {
		fn             func(result *ForgeResult) error
		expectedState  ForgeState
		expectedOutput string
		violation      bool
		otherErr       bool
	}{
		"pass": {
			fn: func(result *ForgeResult) error {
				result.SetState(StatePass)
				result.SetOutput("ok")
				return nil
			},
			expectedState:  StatePass,
			expectedOutput: "ok",
		},
		"empty output is still output": {
			fn: func(result *ForgeResult) error {
				result.SetOutput("")
				result.SetState(StateSkip)
				return nil
			},
			expectedState: StateSkip,
		},
		"never terminal": {
			fn: func(result *ForgeResult) error {
				result.SetOutput("ok")
				return nil
			},
			expectedState:  StateRunning,
			expectedOutput: "ok",
			violation:      true,
		},
		"no output": {
			fn: func(result *ForgeResult) error {
				result.SetState(StateFail)
				return nil
			},
			expectedState: StateFail,
			violation:     true,
		},
		"error and violation": {
			fn: func(result *ForgeResult) error {
				return errors.New("boom")
			},
			expectedState: StateRunning,
			violation:     true,
			otherErr:      true,
		},
		"panic": {
			fn: func(result *ForgeResult) error {
				result.SetOutput("partial")
				panic("boom")
			},
			expectedState:  StateRunning,
			expectedOutput: "partial",
			violation:      true,
			otherErr:       true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := fakeContext()
			result, err := WithForgeResult(c, tc.fn)

			require.NotNil(t, result)
			assert.Equal(t, tc.expectedState, result.State)
			assert.Equal(t, tc.expectedOutput, result.Output)
			assert.Equal(t, capabilities.FakeNow, result.StartTime)
			assert.Equal(t, capabilities.FakeNow, result.EndTime)

			var violation *forgeerrors.ErrInvariantViolation
			assert.Equal(t, tc.violation, errors.As(err, &violation))
			if tc.otherErr {
				assert.Contains(t, err.Error(), "boom")
			}
			if !tc.violation && !tc.otherErr {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithForgeResult_StampsEndTime(t *testing.T) {
	c, _ := fakeContext()
	clock := capabilities.NewFakeTime()
	c.Time = clock

	result, err := WithForgeResult(c, func(result *ForgeResult) error {
		clock.SetTime(capabilities.FakeNow.Add(90 * time.Second))
		result.SetOutput("ok")
		result.SetState(StatePass)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, result.EndTime.Sub(result.StartTime))
}
