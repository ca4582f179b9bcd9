package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/G-Research/forge/internal/common"
	"github.com/G-Research/forge/internal/forge"
	"github.com/G-Research/forge/internal/forgectl"
)

// Flag names. Each flag falls back to the environment variable of the same name in upper snake case.
const (
	localP99LatencyMsThresholdFlag = "local-p99-latency-ms-threshold"
	forgeOutputFlag                = "forge-output"
	forgeReportFlag                = "forge-report"
	forgePreCommentFlag            = "forge-pre-comment"
	forgeCommentFlag               = "forge-comment"
	forgeJUnitFlag                 = "forge-junit"
	forgeMetricsFlag               = "forge-metrics"
	awsRegionFlag                  = "aws-region"
	awsTokenExpirationFlag         = "aws-token-expiration"
	awsAuthScriptFlag              = "aws-auth-script"
	forgeRunnerModeFlag            = "forge-runner-mode"
	forgeClusterNameFlag           = "forge-cluster-name"
	forgeNamespaceKeepFlag         = "forge-namespace-keep"
	forgeNamespaceReuseFlag        = "forge-namespace-reuse"
	forgeEnableHAProxyFlag         = "forge-enable-haproxy"
	forgeTestSuiteFlag             = "forge-test-suite"
	forgeRunnerDurationSecsFlag    = "forge-runner-duration-secs"
	forgeRunnerTPSThresholdFlag    = "forge-runner-tps-threshold"
	imageTagFlag                   = "image-tag"
	upgradeImageTagFlag            = "upgrade-image-tag"
	forgeNamespaceFlag             = "forge-namespace"
	verboseFlag                    = "verbose"
	githubActionsFlag              = "github-actions"
	dryRunFlag                     = "dry-run"
	ignoreClusterWarningFlag       = "ignore-cluster-warning"
)

func addTestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	// for calculating regression in local mode
	flags.Int(localP99LatencyMsThresholdFlag, 60000, "Maximum p99 latency in milliseconds of local runs")

	// output files
	flags.String(forgeOutputFlag, "", "File to write the raw test runner output to")
	flags.String(forgeReportFlag, "", "File to write the test runner report to")
	flags.String(forgePreCommentFlag, "", "File to write the PR comment posted before the run to")
	flags.String(forgeCommentFlag, "", "File to write the PR comment posted after the run to")
	flags.String(forgeJUnitFlag, "", "File to write a JUnit XML summary of the run to")
	flags.String(forgeMetricsFlag, "", "File to write Prometheus metrics of the run to")

	// cluster auth
	flags.String(awsRegionFlag, "us-west-2", "AWS region of the forge cluster and image registry")
	flags.String(awsTokenExpirationFlag, "", "Expiry of the AWS session token, checked when an auth script is used")
	flags.String(awsAuthScriptFlag, "", "Script to source to refresh AWS credentials")

	// forge test runner customization
	flags.String(forgeRunnerModeFlag, string(forge.ModeK8s), "Where to run the test runner: local, k8s or pre-forge")
	flags.String(forgeClusterNameFlag, "", "Cluster to run on (default derived from the current kubeconfig context)")
	flags.Bool(forgeNamespaceKeepFlag, false, "Keep the forge namespace after the run")
	flags.Bool(forgeNamespaceReuseFlag, false, "Reuse an existing forge namespace")
	flags.Bool(forgeEnableHAProxyFlag, false, "Put HAProxy in front of the validators")
	flags.String(forgeTestSuiteFlag, "land_blocking", "Test suite to run")
	flags.Int(forgeRunnerDurationSecsFlag, 300, "Duration of the run in seconds")
	flags.Int(forgeRunnerTPSThresholdFlag, 400, "Minimum average TPS for the run to pass")
	flags.String(imageTagFlag, "", "Image to test (default the most recent commit with a built image)")
	flags.String(upgradeImageTagFlag, "", "Image to upgrade to during the run (default the tested image)")
	flags.String(forgeNamespaceFlag, "", "Namespace to run in (default forge-<user>-<unix time>)")
	flags.Bool(verboseFlag, false, "Log every command that is run")
	flags.Bool(githubActionsFlag, false, "Set when running under GitHub Actions")

	flags.Bool(dryRunFlag, false, "Fake every command and print what would be run")
	flags.Bool(ignoreClusterWarningFlag, false, "Run on clusters whose name doesn't contain forge")
}

func initParams(cmd *cobra.Command, app *forgectl.App) error {
	if err := common.BindCommandlineArgs(cmd.Flags()); err != nil {
		return err
	}
	if err := common.LoadCommandlineArgsFromConfigFile(viper.GetString("config")); err != nil {
		return err
	}

	p := app.Params
	p.LocalP99LatencyMsThreshold = viper.GetInt(localP99LatencyMsThresholdFlag)

	p.Output = viper.GetString(forgeOutputFlag)
	p.Report = viper.GetString(forgeReportFlag)
	p.PreComment = viper.GetString(forgePreCommentFlag)
	p.Comment = viper.GetString(forgeCommentFlag)
	p.JUnit = viper.GetString(forgeJUnitFlag)
	p.Metrics = viper.GetString(forgeMetricsFlag)

	p.AWSRegion = viper.GetString(awsRegionFlag)
	p.AWSTokenExpiration = viper.GetString(awsTokenExpirationFlag)
	p.AWSAuthScript = viper.GetString(awsAuthScriptFlag)

	p.RunnerMode = forge.RunnerMode(viper.GetString(forgeRunnerModeFlag))
	p.ClusterName = viper.GetString(forgeClusterNameFlag)
	p.NamespaceKeep = viper.GetBool(forgeNamespaceKeepFlag)
	p.NamespaceReuse = viper.GetBool(forgeNamespaceReuseFlag)
	p.EnableHAProxy = viper.GetBool(forgeEnableHAProxyFlag)
	p.TestSuite = viper.GetString(forgeTestSuiteFlag)
	p.DurationSecs = viper.GetInt(forgeRunnerDurationSecsFlag)
	p.TPSThreshold = viper.GetInt(forgeRunnerTPSThresholdFlag)

	p.ImageTag = viper.GetString(imageTagFlag)
	p.UpgradeImageTag = viper.GetString(upgradeImageTagFlag)
	p.Namespace = viper.GetString(forgeNamespaceFlag)

	p.Verbose = viper.GetBool(verboseFlag)
	p.GithubActions = viper.GetBool(githubActionsFlag)
	p.DryRun = viper.GetBool(dryRunFlag)
	p.IgnoreClusterWarning = viper.GetBool(ignoreClusterWarningFlag)

	common.SetVerbose(p.Verbose)
	return nil
}
