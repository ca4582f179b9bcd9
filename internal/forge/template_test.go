package forge

import (
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	contents, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return contents
}

func TestRenderTestRunnerPod(t *testing.T) {
	c, _ := fakeContext()
	rendered, err := renderTestRunnerPod(readTestdata(t, "forge-test-runner-template.yaml"), c, "potato-1659052800-asdf")
	require.NoError(t, err)
	assert.Equal(t, string(readTestdata(t, "forge-test-runner-template.fixture")), string(rendered))
}

func TestRenderTestRunnerPod_Flags(t *testing.T) {
	c, _ := fakeContext()
	c.GithubActions = true
	c.ReuseNamespace = true
	c.KeepNamespace = true
	c.EnableHAProxy = true

	rendered, err := renderTestRunnerPod(readTestdata(t, "forge-test-runner-template.yaml"), c, "potato-1659052800-asdf")
	require.NoError(t, err)
	assert.Contains(t, string(rendered), "forge-triggered-by: github-actions")
	assert.Contains(t, string(rendered), "--namespace potato --reuse --keep --enable-haproxy\n")
	assert.NotContains(t, string(rendered), "{")
}

func TestRenderTestRunnerPod_Invalid(t *testing.T) {
	tests := map[string]struct {
		template   string
		invalidArg bool
	}{
		"not yaml": {
			template: "kind: Pod\n\tname: [",
		},
		"not a pod": {
			template:   "apiVersion: v1\nkind: Service\nmetadata:\n  name: {FORGE_POD_NAME}\n",
			invalidArg: true,
		},
		"wrong name": {
			template:   "apiVersion: v1\nkind: Pod\nmetadata:\n  name: banana\n",
			invalidArg: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := fakeContext()
			_, err := renderTestRunnerPod([]byte(tc.template), c, "potato-1659052800-asdf")
			require.Error(t, err)
			var invalidArg *forgeerrors.ErrInvalidArgument
			assert.Equal(t, tc.invalidArg, errors.As(err, &invalidArg))
		})
	}
}

func TestTestRunnerTemplateInRepo(t *testing.T) {
	// The copy under testdata must track the template the cluster runner reads.
	inRepo, err := os.ReadFile("../../" + TestRunnerTemplatePath)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(string(readTestdata(t, "forge-test-runner-template.yaml"))), strings.TrimSpace(string(inRepo)))
}
