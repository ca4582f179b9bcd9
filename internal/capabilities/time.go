package capabilities

import (
	"strconv"
	"time"

	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

// Time is the source of wall-clock time for a run.
type Time = clock.PassiveClock

// FakeNow is the instant returned by NewFakeTime.
var FakeNow = time.Date(2022, 7, 29, 0, 0, 0, 0, time.UTC)

// NewSystemTime returns the real clock.
func NewSystemTime() Time {
	return clock.RealClock{}
}

// NewFakeTime returns a clock frozen at FakeNow.
func NewFakeTime() *clocktesting.FakePassiveClock {
	return clocktesting.NewFakePassiveClock(FakeNow)
}

// Epoch returns the current unix time in seconds as a string.
func Epoch(t Time) string {
	return strconv.FormatInt(t.Now().Unix(), 10)
}
