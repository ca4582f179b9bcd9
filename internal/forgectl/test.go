package forgectl

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/forge"
	"github.com/G-Research/forge/internal/forge/preflight"
)

const (
	dryRunAccountNum = "1234"
	forgeMarker      = "forge"
)

// Test runs the preflight checks and, if they pass, a single forge run. Outputs are written to
// the targets configured in Params. A run that ends in FAIL or SKIP is not an error.
func (a *App) Test(ctx context.Context) error {
	p := a.Params
	if shell, ok := a.Shell.(*capabilities.LocalShell); ok {
		shell.Verbose = p.Verbose
	}
	if p.DryRun {
		a.Shell = capabilities.NewFakeShell()
		a.Processes = capabilities.NewFakeProcesses()
		a.Time = capabilities.NewFakeTime()
	}

	accountNum, err := a.awsAccountNum(ctx)
	if err != nil {
		return err
	}
	if p.AWSAuthScript != "" {
		if err := preflight.AssertAWSTokenExpiration(preflight.AWSTokenExpiration(p.AWSTokenExpiration), a.Time); err != nil {
			return err
		}
	}

	clusterName := p.ClusterName
	if clusterName == "" {
		clusterName, err = preflight.CurrentClusterName("")
		if err != nil {
			return err
		}
	}

	namespace := p.Namespace
	if namespace == "" {
		username, err := a.CurrentUser()
		if err != nil {
			return err
		}
		namespace = fmt.Sprintf("forge-%s-%s", username, capabilities.Epoch(a.Time))
	}

	fmt.Fprintf(a.Out, "Using forge cluster: %s\n", clusterName)
	if !strings.Contains(clusterName, forgeMarker) && !p.IgnoreClusterWarning {
		fmt.Fprintln(a.Out, "Forge cluster usually contains forge, to ignore this warning set --ignore-cluster-warning")
		return nil
	}

	imageTag, upgradeImageTag, err := a.resolveImages(ctx)
	if err != nil {
		return err
	}

	fctx := &forge.ForgeContext{
		Shell:      a.Shell,
		Filesystem: a.Filesystem,
		Processes:  a.Processes,
		Time:       a.Time,

		TestSuite:          p.TestSuite,
		LatencyThresholdMs: p.LocalP99LatencyMsThreshold,
		TPSThreshold:       p.TPSThreshold,
		DurationSecs:       p.DurationSecs,

		Namespace:      namespace,
		ReuseNamespace: p.NamespaceReuse,
		KeepNamespace:  p.NamespaceKeep,
		EnableHAProxy:  p.EnableHAProxy,

		AWSAccountNum: accountNum,
		AWSRegion:     p.AWSRegion,

		ImageTag:        imageTag,
		UpgradeImageTag: upgradeImageTag,
		ClusterName:     clusterName,

		GithubActions: p.GithubActions,
		RunID:         a.NewRunID(),
	}
	logger := log.WithField("namespace", namespace).WithField("run_id", fctx.RunID)

	if p.PreComment != "" {
		err := fctx.Report(forge.EmptyForgeResult(), []forge.ForgeFormatter{
			forge.NewForgeFormatter(p.PreComment, forge.FormatPreComment),
		})
		if err != nil {
			return err
		}
	}
	if p.RunnerMode == forge.ModePreForge {
		return nil
	}

	runner, err := a.NewRunner(p.RunnerMode)
	if err != nil {
		return err
	}
	logger.Infof("starting %s forge run of %s with image %s", p.RunnerMode, p.TestSuite, imageTag)
	result, err := runner.Run(ctx, fctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, result.Format())

	return fctx.Report(result, a.outputs())
}

// awsAccountNum returns the account of the current AWS credentials, refreshing them with the
// auth script if there are none.
func (a *App) awsAccountNum(ctx context.Context) (string, error) {
	if a.Params.DryRun {
		return dryRunAccountNum, nil
	}
	accountNum, err := preflight.AWSAccountNum(ctx, a.Shell)
	if err == nil {
		return accountNum, nil
	}
	log.WithError(err).Info("refreshing AWS credentials")
	return preflight.UpdateAWSAuth(ctx, a.Shell, a.Params.AWSAuthScript)
}

// resolveImages finds the image to test if none was given, otherwise checks the given images
// exist. The upgrade image defaults to the tested image.
func (a *App) resolveImages(ctx context.Context) (string, string, error) {
	p := a.Params
	imageTag := p.ImageTag
	if imageTag == "" {
		tag, err := preflight.FindRecentImage(ctx, a.Shell, preflight.Git{Shell: a.Shell}, preflight.DefaultCommitThreshold)
		if err != nil {
			return "", "", err
		}
		imageTag = tag
	} else {
		images := map[string]string{"image": imageTag}
		if p.UpgradeImageTag != "" {
			images["upgrade image"] = p.UpgradeImageTag
		}
		if err := preflight.VerifyImages(ctx, a.Shell, images); err != nil {
			return "", "", err
		}
	}

	upgradeImageTag := p.UpgradeImageTag
	if upgradeImageTag == "" {
		upgradeImageTag = imageTag
	}
	return imageTag, upgradeImageTag, nil
}

func (a *App) outputs() []forge.ForgeFormatter {
	p := a.Params
	targets := []struct {
		target string
		format func(*forge.ForgeContext, *forge.ForgeResult) string
	}{
		{p.Output, forge.FormatOutput},
		{p.Report, forge.FormatReport},
		{p.Comment, forge.FormatComment},
		{p.JUnit, forge.FormatJUnit},
		{p.Metrics, forge.FormatMetrics},
	}
	var formatters []forge.ForgeFormatter
	for _, t := range targets {
		if t.target != "" {
			formatters = append(formatters, forge.NewForgeFormatter(t.target, t.format))
		}
	}
	return formatters
}
