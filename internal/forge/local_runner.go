package forge

import (
	"context"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/forge/internal/capabilities"
)

const (
	// Processes whose name contains this are killed after a local run.
	clusterCLIName = "kubectl"
	mempoolBacklog = "5000"
)

var prometheusPortForward = []string{clusterCLIName, "port-forward", "prometheus", "9090"}

// LocalRunner runs the forge test runner as a local process.
type LocalRunner struct {
	// Raises the open file limit before the run. Replaceable in tests.
	raiseFileLimit func() error
}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{raiseFileLimit: raiseOpenFileLimit}
}

func (r *LocalRunner) Run(ctx context.Context, c *ForgeContext) (*ForgeResult, error) {
	logger := log.WithField("namespace", c.Namespace).WithField("run_id", c.RunID)

	if err := r.raiseFileLimit(); err != nil {
		logger.WithError(err).Warn("could not raise open file limit")
	}

	// Metrics are a nice-to-have; the run goes ahead without them.
	portForward, err := c.Shell.Spawn(ctx, prometheusPortForward)
	if err != nil {
		logger.WithError(err).Warn("could not forward the prometheus port")
	}
	defer r.cleanup(c, portForward, logger)

	return WithForgeResult(c, func(result *ForgeResult) error {
		output, err := c.Shell.Run(ctx, localRunnerCommand(c), true).Unwrap()
		if err != nil {
			result.SetOutput(err.Error())
			result.SetState(StateFail)
			return nil
		}
		result.SetOutput(string(output))
		result.SetState(StatePass)
		return nil
	})
}

func localRunnerCommand(c *ForgeContext) []string {
	command := []string{
		"cargo", "run", "-p", "forge-cli",
		"--",
		"--suite", c.TestSuite,
		"--mempool-backlog", mempoolBacklog,
		"--avg-tps", strconv.Itoa(c.TPSThreshold),
		"--max-latency-ms", strconv.Itoa(c.LatencyThresholdMs),
		"--duration-secs", strconv.Itoa(c.DurationSecs),
		"test", "k8s-swarm",
		"--image-tag", c.ImageTag,
		"--upgrade-image-tag", c.UpgradeImageTag,
		"--namespace", c.Namespace,
		"--port-forward",
	}
	return append(command, c.extraArgs()...)
}

// cleanup kills every cluster CLI process, port forwards included, unless the namespace is kept.
func (r *LocalRunner) cleanup(c *ForgeContext, portForward capabilities.Background, logger *log.Entry) {
	if c.KeepNamespace {
		return
	}
	var errs *multierror.Error
	processes, err := c.Processes.Processes()
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, p := range processes {
		if strings.Contains(p.Name(), clusterCLIName) {
			if err := p.Kill(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if portForward != nil {
		if err := portForward.Terminate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		logger.WithError(err).Warn("error cleaning up local forge run")
	}
}
