package forge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/forgeerrors"
)

const (
	// Namespace the test runner pod is scheduled in.
	testRunnerNamespace = "default"
	// Label tying a test runner pod to the forge namespace it tests.
	forgeNamespaceLabel = "forge-namespace"
	maxPodNameLength    = 64
	podReadyTimeout     = "5m"

	defaultPollAttempts    = 100
	defaultPollInterval    = time.Second
	defaultMaxPollInterval = 30 * time.Second
)

var (
	notFoundPattern = regexp.MustCompile(`(?i)not\s*found`)
	errPodRunning   = errors.New("forge pod is still running")
)

// ClusterRunner runs the forge test runner as a pod on the current cluster.
type ClusterRunner struct {
	// Maximum number of times the pod phase is read before giving up.
	PollAttempts uint
	// Delay before the second read of the pod phase. Doubles on every read.
	PollInterval time.Duration
	// Upper bound on the delay between two reads of the pod phase.
	MaxPollInterval time.Duration
}

func NewClusterRunner() *ClusterRunner {
	return &ClusterRunner{
		PollAttempts:    defaultPollAttempts,
		PollInterval:    defaultPollInterval,
		MaxPollInterval: defaultMaxPollInterval,
	}
}

func (r *ClusterRunner) Run(ctx context.Context, c *ForgeContext) (*ForgeResult, error) {
	podName := forgePodName(c)
	logger := log.WithField("namespace", c.Namespace).WithField("pod", podName).WithField("run_id", c.RunID)
	selector := labels.SelectorFromSet(labels.Set{forgeNamespaceLabel: c.Namespace}).String()

	logger.Info("deleting previous forge test runner pods")
	c.Shell.Run(ctx, kubectl("delete", "pod", "-n", testRunnerNamespace, "-l", selector, "--force"), false)
	c.Shell.Run(ctx, kubectl("wait", "-n", testRunnerNamespace, "--for=delete", "pod", "-l", selector), false)

	template, err := c.Filesystem.Read(TestRunnerTemplatePath)
	if err != nil {
		return nil, err
	}
	spec, err := renderTestRunnerPod(template, c, podName)
	if err != nil {
		return nil, err
	}

	return WithForgeResult(c, func(result *ForgeResult) error {
		logs, err := r.launch(ctx, c, podName, spec)
		if err != nil {
			logger.WithError(err).Error("forge test runner pod failed to run")
			result.SetOutput(err.Error())
			result.SetState(StateFail)
			return nil
		}
		state, err := r.waitForPhase(ctx, c, podName)
		if err != nil {
			return err
		}
		logger.Infof("forge test runner pod finished with %s", state)
		result.SetOutput(string(logs))
		result.SetState(state)
		return nil
	})
}

// launch submits the pod spec, waits for the pod to be ready and follows its logs until it exits.
func (r *ClusterRunner) launch(ctx context.Context, c *ForgeContext, podName string, spec []byte) ([]byte, error) {
	specFile, err := c.Filesystem.Mkstemp()
	if err != nil {
		return nil, err
	}
	if err := c.Filesystem.Write(specFile, spec); err != nil {
		return nil, err
	}
	if _, err := c.Shell.Run(ctx, kubectl("apply", "-n", testRunnerNamespace, "-f", specFile), false).Unwrap(); err != nil {
		return nil, errors.WithMessage(err, "error applying forge test runner pod")
	}
	_, err = c.Shell.Run(ctx, kubectl(
		"wait", "-n", testRunnerNamespace, "--timeout="+podReadyTimeout, "--for=condition=Ready", "pod/"+podName,
	), false).Unwrap()
	if err != nil {
		return nil, errors.WithMessage(err, "forge test runner pod never became ready")
	}
	logs, err := c.Shell.Run(ctx, kubectl("logs", "-n", testRunnerNamespace, "-f", podName), true).Unwrap()
	if err != nil {
		return nil, errors.WithMessage(err, "error following forge test runner logs")
	}
	return logs, nil
}

// waitForPhase reads the pod phase until it resolves to a terminal state, backing off between reads.
// Running out of attempts is fatal: it means the pod could not be observed, not that the test failed.
func (r *ClusterRunner) waitForPhase(ctx context.Context, c *ForgeContext, podName string) (ForgeState, error) {
	var state ForgeState
	err := retry.Do(
		func() error {
			// A deleted pod answers with a non-zero exit and a not found message, so the exit code is ignored.
			phase := c.Shell.Run(ctx, kubectl(
				"get", "pod", "-n", testRunnerNamespace, podName, "-o", "jsonpath='{.status.phase}'",
			), false).Output
			resolved, ok := classifyPodPhase(string(phase))
			if !ok {
				return errPodRunning
			}
			state = resolved
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.PollAttempts),
		retry.Delay(r.PollInterval),
		retry.MaxDelay(r.MaxPollInterval),
		retry.DelayType(retry.BackOffDelay),
	)
	if err == nil {
		return state, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", errors.WithStack(ctxErr)
	}
	return "", errors.WithStack(&forgeerrors.ErrPollingExhausted{Pod: podName, Attempts: r.PollAttempts})
}

// classifyPodPhase maps the output of a pod phase query to a terminal state. The second return
// value is false while the pod is still running.
// See https://kubernetes.io/docs/concepts/workloads/pods/pod-lifecycle/#pod-phase
func classifyPodPhase(phase string) (ForgeState, bool) {
	phase = strings.ToLower(phase)
	switch {
	case strings.Contains(phase, strings.ToLower(string(corev1.PodRunning))):
		return "", false
	case strings.Contains(phase, strings.ToLower(string(corev1.PodSucceeded))):
		return StatePass, true
	case notFoundPattern.MatchString(phase):
		return StateSkip, true
	default:
		return StateFail, true
	}
}

// forgePodName is unique per namespace, second and image.
func forgePodName(c *ForgeContext) string {
	name := fmt.Sprintf("%s-%s-%s", c.Namespace, capabilities.Epoch(c.Time), c.ImageTag)
	if len(name) > maxPodNameLength {
		name = name[:maxPodNameLength]
	}
	return name
}

func kubectl(args ...string) []string {
	return append([]string{clusterCLIName}, args...)
}
