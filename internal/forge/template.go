package forge

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

// TestRunnerTemplatePath is the pod spec template of the cluster test runner, relative to the
// repository root.
const TestRunnerTemplatePath = "testsuite/forge-test-runner-template.yaml"

const (
	triggeredByGithubActions = "github-actions"
	triggeredByOther         = "other"
)

// renderTestRunnerPod substitutes the run parameters into template. The result must decode into
// a Pod named podName.
func renderTestRunnerPod(template []byte, c *ForgeContext, podName string) ([]byte, error) {
	triggeredBy := triggeredByOther
	if c.GithubActions {
		triggeredBy = triggeredByGithubActions
	}
	r := strings.NewReplacer(
		"{FORGE_POD_NAME}", podName,
		"{FORGE_TEST_SUITE}", c.TestSuite,
		"{FORGE_RUNNER_DURATION_SECS}", strconv.Itoa(c.DurationSecs),
		"{FORGE_RUNNER_TPS_THRESHOLD}", strconv.Itoa(c.TPSThreshold),
		"{IMAGE_TAG}", c.ImageTag,
		"{UPGRADE_IMAGE_TAG}", c.UpgradeImageTag,
		"{AWS_ACCOUNT_NUM}", c.AWSAccountNum,
		"{AWS_REGION}", c.AWSRegion,
		"{FORGE_NAMESPACE}", c.Namespace,
		"{REUSE_ARGS}", strings.Join(c.reuseArgs(), " "),
		"{KEEP_ARGS}", strings.Join(c.keepArgs(), " "),
		"{ENABLE_HAPROXY_ARGS}", strings.Join(c.haproxyArgs(), " "),
		"{FORGE_TRIGGERED_BY}", triggeredBy,
	)
	rendered := []byte(r.Replace(string(template)))

	pod := &corev1.Pod{}
	if err := yaml.Unmarshal(rendered, pod); err != nil {
		return nil, errors.Wrapf(err, "rendered %s is not valid yaml", TestRunnerTemplatePath)
	}
	if pod.Kind != "Pod" || pod.Name != podName {
		return nil, errors.WithStack(&forgeerrors.ErrInvalidArgument{
			Name:    TestRunnerTemplatePath,
			Value:   pod.Kind + "/" + pod.Name,
			Message: "template must render to a pod named " + podName,
		})
	}
	return rendered, nil
}
