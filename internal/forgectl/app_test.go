package forgectl

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/forgeerrors"
	"github.com/G-Research/forge/internal/forge"
)

// scriptedRunner returns a fixed result without touching any capability.
type scriptedRunner struct {
	result *forge.ForgeResult
	err    error
	ran    *forge.ForgeContext
}

func (r *scriptedRunner) Run(_ context.Context, c *forge.ForgeContext) (*forge.ForgeResult, error) {
	r.ran = c
	return r.result, r.err
}

func testApp(t *testing.T) (*App, *bytes.Buffer, *capabilities.AferoFilesystem) {
	template, err := os.ReadFile("../forge/testdata/forge-test-runner-template.yaml")
	require.NoError(t, err)
	filesystem := &capabilities.AferoFilesystem{Fs: afero.NewMemMapFs()}
	require.NoError(t, filesystem.Write(forge.TestRunnerTemplatePath, template))

	buf := new(bytes.Buffer)
	app := &App{
		Params: &Params{
			AWSRegion:                  "us-west-2",
			RunnerMode:                 forge.ModeK8s,
			TestSuite:                  "land_blocking",
			DurationSecs:               300,
			TPSThreshold:               400,
			LocalP99LatencyMsThreshold: 60000,
		},
		Out:         buf,
		Shell:       capabilities.NewFakeShell(),
		Filesystem:  filesystem,
		Processes:   capabilities.NewFakeProcesses(),
		Time:        capabilities.NewFakeTime(),
		CurrentUser: func() (string, error) { return "perry", nil },
		NewRunner:   forge.NewForgeRunner,
		NewRunID:    func() string { return "run-1" },
	}
	return app, buf, filesystem
}

func contents(t *testing.T, filesystem *capabilities.AferoFilesystem, name string) string {
	t.Helper()
	b, err := filesystem.Read(name)
	require.NoError(t, err)
	return string(b)
}

func TestVersion(t *testing.T) {
	app, buf, _ := testApp(t)
	require.NoError(t, app.Version())

	out := buf.String()
	for _, s := range []string{"Version", "Commit", "Go version", "Built"} {
		assert.Contains(t, out, s)
	}
}

func TestCheckRepositoryRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.Error(t, CheckRepositoryRoot(fs))

	require.NoError(t, fs.MkdirAll(".git", 0o755))
	assert.NoError(t, CheckRepositoryRoot(fs))
}

func TestTest_DryRun(t *testing.T) {
	app, buf, filesystem := testApp(t)
	app.Params.DryRun = true
	app.Params.ClusterName = "forge-1"
	app.Params.Report = "temp-report"
	app.Params.PreComment = "temp-pre-comment"
	app.Params.Comment = "temp-comment"

	require.NoError(t, app.Test(context.Background()))

	// The fake shell answers every command with "output", which is neither a running nor a
	// succeeded pod phase.
	assert.Equal(t, "Using forge cluster: forge-1\nForge failed\n", buf.String())
	assert.Equal(t, "Forge test runner terminated", contents(t, filesystem, "temp-report"))

	preComment := contents(t, filesystem, "temp-pre-comment")
	assert.True(t, strings.HasPrefix(preComment, "\n=====START PRE_FORGE COMMENT=====\n### Forge is running with `output`\n"))
	assert.Contains(t, preComment, "params:(query:forge-perry-1659052800)")
	assert.True(t, strings.HasSuffix(preComment, "=====END PRE_FORGE COMMENT=====\n"))

	comment := contents(t, filesystem, "temp-comment")
	assert.True(t, strings.HasPrefix(comment, "\n=====START FORGE COMMENT=====\n```\n```\n### Forge is running with `output`\n"))
	assert.True(t, strings.HasSuffix(comment, "Forge failed\n=====END FORGE COMMENT=====\n"))

	for _, notWritten := range []string{"temp-output", "temp-junit"} {
		_, err := filesystem.Read(notWritten)
		assert.Error(t, err)
	}
}

func TestTest_ClusterWarning(t *testing.T) {
	app, buf, _ := testApp(t)
	app.Params.DryRun = true
	app.Params.ClusterName = "aptos-devnet"
	runner := &scriptedRunner{}
	app.NewRunner = func(forge.RunnerMode) (forge.ForgeRunner, error) { return runner, nil }

	require.NoError(t, app.Test(context.Background()))
	assert.Equal(t, "Using forge cluster: aptos-devnet\n"+
		"Forge cluster usually contains forge, to ignore this warning set --ignore-cluster-warning\n", buf.String())
	assert.Nil(t, runner.ran)

	buf.Reset()
	app.Params.IgnoreClusterWarning = true
	runner.result = forge.NewForgeResult(forge.StatePass, "ok")
	require.NoError(t, app.Test(context.Background()))
	assert.Equal(t, "Using forge cluster: aptos-devnet\nForge passed\n", buf.String())
	assert.NotNil(t, runner.ran)
}

func TestTest_PreForge(t *testing.T) {
	app, buf, filesystem := testApp(t)
	app.Params.DryRun = true
	app.Params.ClusterName = "forge-1"
	app.Params.RunnerMode = forge.ModePreForge
	app.Params.PreComment = "pre"
	app.Params.Comment = "comment"
	app.NewRunner = func(forge.RunnerMode) (forge.ForgeRunner, error) {
		t.Fatal("pre-forge mode must not build a runner")
		return nil, nil
	}

	require.NoError(t, app.Test(context.Background()))
	assert.Equal(t, "Using forge cluster: forge-1\n", buf.String())
	assert.Contains(t, contents(t, filesystem, "pre"), "START PRE_FORGE COMMENT")
	_, err := filesystem.Read("comment")
	assert.Error(t, err)
}

func TestTest_Outputs(t *testing.T) {
	app, _, filesystem := testApp(t)
	app.Params.DryRun = true
	app.Params.ClusterName = "forge-1"
	app.Params.Namespace = "forge-custom"
	app.Params.ImageTag = "banana"
	app.Params.NamespaceKeep = true
	app.Params.Output = "out"
	app.Params.JUnit = "junit.xml"
	app.Params.Metrics = "forge.prom"
	runner := &scriptedRunner{result: forge.NewForgeResult(forge.StateSkip, "raw output")}
	app.NewRunner = func(forge.RunnerMode) (forge.ForgeRunner, error) { return runner, nil }

	require.NoError(t, app.Test(context.Background()))
	assert.Equal(t, "raw output", contents(t, filesystem, "out"))
	assert.Contains(t, contents(t, filesystem, "junit.xml"), "<skipped")
	assert.Contains(t, contents(t, filesystem, "forge.prom"), `forge_run_state{namespace="forge-custom",run_id="run-1",state="SKIP",suite="land_blocking"} 1`)

	c := runner.ran
	require.NotNil(t, c)
	assert.Equal(t, "forge-custom", c.Namespace)
	assert.Equal(t, "banana", c.ImageTag)
	assert.Equal(t, "banana", c.UpgradeImageTag)
	assert.Equal(t, "1234", c.AWSAccountNum)
	assert.True(t, c.KeepNamespace)
	assert.Equal(t, "run-1", c.RunID)
}

func TestTest_Preflight(t *testing.T) {
	describe := "aws ecr describe-images --repository-name aptos/validator --image-ids imageTag="
	tests := map[string]struct {
		setup func(app *App, shell *capabilities.FakeShell)
		check func(t *testing.T, err error)
	}{
		"missing image": {
			setup: func(app *App, shell *capabilities.FakeShell) {
				app.Params.ImageTag = "missing"
				shell.Respond(describe+"missing", capabilities.RunResult{ExitCode: 254})
			},
			check: func(t *testing.T, err error) {
				var notFound *forgeerrors.ErrNotFound
				require.True(t, errors.As(err, &notFound))
				assert.Equal(t, "missing", notFound.Value)
			},
		},
		"missing upgrade image": {
			setup: func(app *App, shell *capabilities.FakeShell) {
				app.Params.ImageTag = "built"
				app.Params.UpgradeImageTag = "missing"
				shell.Respond(describe+"missing", capabilities.RunResult{ExitCode: 254})
			},
			check: func(t *testing.T, err error) {
				var notFound *forgeerrors.ErrNotFound
				require.True(t, errors.As(err, &notFound))
				assert.Equal(t, "upgrade image", notFound.Type)
			},
		},
		"no credentials and no auth script": {
			setup: func(app *App, shell *capabilities.FakeShell) {
				shell.Responses["aws sts get-caller-identity"] = []capabilities.RunResult{{ExitCode: 255}}
			},
			check: func(t *testing.T, err error) {
				var credentials *forgeerrors.ErrCredentials
				require.True(t, errors.As(err, &credentials))
				assert.Equal(t, "Please authenticate with AWS and rerun", credentials.Message)
			},
		},
		"expired token": {
			setup: func(app *App, shell *capabilities.FakeShell) {
				app.Params.AWSAuthScript = "auth.sh"
				app.Params.AWSTokenExpiration = "2022-07-28T00:00:00Z"
			},
			check: func(t *testing.T, err error) {
				var credentials *forgeerrors.ErrCredentials
				require.True(t, errors.As(err, &credentials))
				assert.Equal(t, "AWS token has expired", credentials.Message)
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AWS_TOKEN_EXPIRATION", "")
			app, _, _ := testApp(t)
			app.Params.ClusterName = "forge-1"
			shell := capabilities.NewFakeShell().
				Respond("aws sts get-caller-identity", capabilities.RunResult{Output: []byte(`{"Account": "42"}`)})
			app.Shell = shell
			tc.setup(app, shell)
			app.NewRunner = func(forge.RunnerMode) (forge.ForgeRunner, error) {
				t.Fatal("preflight failures must stop before a runner is built")
				return nil, nil
			}

			tc.check(t, app.Test(context.Background()))
		})
	}
}

func TestTest_AuthScriptExportsTokenExpiration(t *testing.T) {
	// The auth script exports into this process; register cleanup for everything it sets.
	t.Setenv("AWS_TOKEN_EXPIRATION", "")
	t.Setenv("AWS_SESSION_TOKEN", "")

	app, _, _ := testApp(t)
	app.Params.ClusterName = "forge-1"
	app.Params.ImageTag = "built"
	app.Params.AWSAuthScript = "auth.sh"
	app.Params.RunnerMode = forge.ModePreForge
	shell := capabilities.NewFakeShell().
		Respond("aws sts get-caller-identity",
			capabilities.RunResult{ExitCode: 255},
			capabilities.RunResult{Output: []byte(`{"Account": "123"}`)}).
		Respond(`bash -c source "$1" && env | grep AWS_ _ auth.sh`, capabilities.RunResult{
			Output: []byte("AWS_SESSION_TOKEN=abc\nAWS_TOKEN_EXPIRATION=2099-01-01T00:00:00+0000\n"),
		})
	app.Shell = shell

	require.NoError(t, app.Test(context.Background()))
	assert.Equal(t, 2, shell.Calls("aws sts get-caller-identity"))
	assert.Equal(t, "2099-01-01T00:00:00+0000", os.Getenv("AWS_TOKEN_EXPIRATION"))
}

func TestTest_FatalRunError(t *testing.T) {
	app, buf, filesystem := testApp(t)
	app.Params.DryRun = true
	app.Params.ClusterName = "forge-1"
	app.Params.Comment = "comment"
	runner := &scriptedRunner{err: &forgeerrors.ErrPollingExhausted{Pod: "p", Attempts: 100}}
	app.NewRunner = func(forge.RunnerMode) (forge.ForgeRunner, error) { return runner, nil }

	err := app.Test(context.Background())
	assert.True(t, forgeerrors.IsFatal(err))
	assert.Equal(t, "Using forge cluster: forge-1\n", buf.String())
	_, readErr := filesystem.Read("comment")
	assert.Error(t, readErr)
}
