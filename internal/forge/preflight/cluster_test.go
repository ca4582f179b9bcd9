package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

const kubeconfig = `apiVersion: v1
kind: Config
current-context: arn:aws:eks:us-west-2:123456789012:cluster/aptos-forge-1
contexts:
  - name: arn:aws:eks:us-west-2:123456789012:cluster/aptos-forge-1
    context:
      cluster: forge
      user: forge
clusters:
  - name: forge
    cluster:
      server: https://forge.example.com
users:
  - name: forge
    user: {}
`

func TestCurrentClusterName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))

	name, err := CurrentClusterName(path)
	require.NoError(t, err)
	assert.Equal(t, "aptos-forge-1", name)
}

func TestCurrentClusterName_MissingFile(t *testing.T) {
	_, err := CurrentClusterName(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestClusterNameFromContext(t *testing.T) {
	tests := map[string]struct {
		context  string
		expected string
	}{
		"eks arn":    {context: "arn:aws:eks:us-west-2:123:cluster/aptos-forge-0", expected: "aptos-forge-0"},
		"plain name": {context: "aptos-devnet", expected: "aptos-devnet"},
		"no match":   {context: "kind-kind"},
		"empty":      {context: ""},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			clusterName, err := clusterNameFromContext(tc.context)
			if tc.expected == "" {
				var ambiguous *forgeerrors.ErrAmbiguousCluster
				assert.True(t, errors.As(err, &ambiguous))
				assert.True(t, forgeerrors.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, clusterName)
		})
	}
}
