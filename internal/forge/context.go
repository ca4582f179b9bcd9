// Package forge orchestrates a single Forge load-test run: it carries the run configuration,
// executes the test runner locally or on a cluster, and renders the outcome into reports.
package forge

import (
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/G-Research/forge/internal/capabilities"
)

const (
	namespacePrefix = "aptos-"
	chainNameSuffix = "net"
	// Chain and cluster names of dedicated forge networks contain this marker.
	forgeMarker = "forge"
)

// ForgeContext is the read-only configuration of a run together with the capabilities it uses.
// It is built once per invocation and shared by the runner and all formatters.
type ForgeContext struct {
	Shell      capabilities.Shell
	Filesystem capabilities.Filesystem
	Processes  capabilities.Processes
	Time       capabilities.Time

	// Forge criteria
	TestSuite          string
	LatencyThresholdMs int
	TPSThreshold       int
	DurationSecs       int

	// Forge cluster options
	Namespace      string
	ReuseNamespace bool
	KeepNamespace  bool
	EnableHAProxy  bool

	// AWS options
	AWSAccountNum string
	AWSRegion     string

	ImageTag        string
	UpgradeImageTag string
	ClusterName     string

	// Set when running under GitHub Actions.
	GithubActions bool
	// Identifies this invocation in logs and metrics.
	RunID string
}

// ChainName is the chain name used by the observability stack for this namespace.
func (c *ForgeContext) ChainName() string {
	chainName := strings.TrimPrefix(c.Namespace, namespacePrefix)
	if !strings.Contains(chainName, forgeMarker) {
		chainName += chainNameSuffix
	}
	return chainName
}

// Report renders result with every formatter and writes each rendering to the formatter's target.
// All targets are attempted; write errors are returned together.
func (c *ForgeContext) Report(result *ForgeResult, formatters []ForgeFormatter) error {
	var errs *multierror.Error
	for _, formatter := range formatters {
		if err := c.Filesystem.Write(formatter.Target, []byte(formatter.Format(c, result))); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// extraArgs returns the optional flags passed verbatim to the test runner.
func (c *ForgeContext) extraArgs() []string {
	var args []string
	args = append(args, c.reuseArgs()...)
	args = append(args, c.keepArgs()...)
	args = append(args, c.haproxyArgs()...)
	return args
}

func (c *ForgeContext) reuseArgs() []string {
	if c.ReuseNamespace {
		return []string{"--reuse"}
	}
	return nil
}

func (c *ForgeContext) keepArgs() []string {
	if c.KeepNamespace {
		return []string{"--keep"}
	}
	return nil
}

func (c *ForgeContext) haproxyArgs() []string {
	if c.EnableHAProxy {
		return []string{"--enable-haproxy"}
	}
	return nil
}
