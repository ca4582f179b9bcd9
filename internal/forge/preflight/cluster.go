package preflight

import (
	"regexp"

	"github.com/pkg/errors"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/G-Research/forge/internal/common/forgeerrors"
)

var clusterNamePattern = regexp.MustCompile(`aptos.*`)

// CurrentClusterName derives the cluster name from the current context of the kubeconfig at
// kubeconfigPath. With an empty path the usual KUBECONFIG and $HOME/.kube/config rules apply.
func CurrentClusterName(kubeconfigPath string) (string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	config, err := rules.Load()
	if err != nil {
		return "", errors.Wrap(err, "error loading kubeconfig")
	}
	return clusterNameFromContext(config.CurrentContext)
}

// clusterNameFromContext requires exactly one match, e.g. "aptos-forge-0" out of
// "arn:aws:eks:us-west-2:123:cluster/aptos-forge-0".
func clusterNameFromContext(context string) (string, error) {
	matches := clusterNamePattern.FindAllString(context, -1)
	if len(matches) != 1 {
		return "", errors.WithStack(&forgeerrors.ErrAmbiguousCluster{Context: context})
	}
	return matches[0], nil
}
