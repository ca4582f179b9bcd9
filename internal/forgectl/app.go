package forgectl

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/G-Research/forge/internal/capabilities"
	"github.com/G-Research/forge/internal/common/build"
	"github.com/G-Research/forge/internal/forge"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer

	Shell      capabilities.Shell
	Filesystem capabilities.Filesystem
	Processes  capabilities.Processes
	Time       capabilities.Time

	// Returns the login name of the user running forge.
	CurrentUser func() (string, error)
	// Returns the runner for a mode. Tests can swap in runners with scripted results.
	NewRunner func(mode forge.RunnerMode) (forge.ForgeRunner, error)
	// Returns a fresh id for every run.
	NewRunID func() string
}

// Params struct holds all user-customizable parameters.
// Every field can be provided as a flag, an environment variable or in a config file.
type Params struct {
	// Latency regression threshold of local runs.
	LocalP99LatencyMsThreshold int

	// Output targets. Empty targets are not written.
	Output     string
	Report     string
	PreComment string
	Comment    string
	JUnit      string
	Metrics    string

	AWSRegion          string
	AWSTokenExpiration string
	AWSAuthScript      string

	RunnerMode     forge.RunnerMode
	ClusterName    string
	NamespaceKeep  bool
	NamespaceReuse bool
	EnableHAProxy  bool
	TestSuite      string
	DurationSecs   int
	TPSThreshold   int

	ImageTag        string
	UpgradeImageTag string
	Namespace       string

	Verbose       bool
	GithubActions bool

	// Swap every capability with side effects for a fake.
	DryRun bool
	// Run against clusters that don't look like forge clusters.
	IgnoreClusterWarning bool
}

// New instantiates an App with default parameters, including standard output
// and the local machine's shell, filesystem, processes and clock.
func New() *App {
	return &App{
		Params:      &Params{},
		Out:         os.Stdout,
		Shell:       capabilities.NewLocalShell(false),
		Filesystem:  capabilities.NewLocalFilesystem(),
		Processes:   capabilities.SystemProcesses{},
		Time:        capabilities.NewSystemTime(),
		CurrentUser: currentUser,
		NewRunner:   forge.NewForgeRunner,
		NewRunID:    uuid.NewString,
	}
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

// CheckRepositoryRoot returns an error unless the working directory of fs is the root of a
// git repository. Paths such as the test runner template are relative to it.
func CheckRepositoryRoot(fs afero.Fs) error {
	isRoot, err := afero.DirExists(fs, ".git")
	if err != nil {
		return errors.WithStack(err)
	}
	if !isRoot {
		return errors.New("This script must be run from the root of the repository.")
	}
	return nil
}

func currentUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return u.Username, nil
}
