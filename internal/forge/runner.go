package forge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

// ForgeRunner executes one run of the forge test runner against one backend.
type ForgeRunner interface {
	Run(ctx context.Context, c *ForgeContext) (*ForgeResult, error)
}

// RunnerMode selects the backend a run is executed on.
type RunnerMode string

const (
	// ModeLocal runs the test runner as a local process against a cluster reached by port forwarding.
	ModeLocal RunnerMode = "local"
	// ModeK8s schedules the test runner as a pod on the cluster.
	ModeK8s RunnerMode = "k8s"
	// ModePreForge only posts the pre-run comment; no runner is involved.
	ModePreForge RunnerMode = "pre-forge"
)

var runnerConstructors = map[RunnerMode]func() ForgeRunner{
	ModeLocal: func() ForgeRunner { return NewLocalRunner() },
	ModeK8s:   func() ForgeRunner { return NewClusterRunner() },
}

// NewForgeRunner returns the runner for mode.
func NewForgeRunner(mode RunnerMode) (ForgeRunner, error) {
	constructor, ok := runnerConstructors[mode]
	if !ok {
		return nil, errors.WithStack(&forgeerrors.ErrInvalidArgument{
			Name:    "FORGE_RUNNER_MODE",
			Value:   string(mode),
			Message: "expected one of local, k8s",
		})
	}
	return constructor(), nil
}
