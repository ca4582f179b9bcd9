package capabilities

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/exec"
)

// Shell runs external commands. Implementations never fail on a non-zero exit code;
// the exit code is carried in the RunResult and only surfaces through RunResult.Unwrap.
type Shell interface {
	// Run executes command in the foreground and waits for it to exit. If streamOutput is set,
	// output is copied to the shell's output as it is produced, in addition to being captured.
	Run(ctx context.Context, command []string, streamOutput bool) RunResult
	// Spawn starts command in the background and returns immediately.
	Spawn(ctx context.Context, command []string) (Background, error)
}

// Background is a process started by Shell.Spawn.
type Background interface {
	// Terminate stops the process and waits for it to exit.
	Terminate() error
}

// LocalShell runs commands as local subprocesses.
type LocalShell struct {
	// If set, every command is logged before it runs.
	Verbose bool
	// Out receives streamed output. Defaults to standard out.
	Out  io.Writer
	exec exec.Interface
}

// NewLocalShell returns a LocalShell streaming to standard out.
func NewLocalShell(verbose bool) *LocalShell {
	return &LocalShell{
		Verbose: verbose,
		Out:     os.Stdout,
		exec:    exec.New(),
	}
}

func (s *LocalShell) Run(ctx context.Context, command []string, streamOutput bool) RunResult {
	if len(command) == 0 {
		return RunResult{ExitCode: -1, Output: []byte("empty command")}
	}
	if s.Verbose {
		log.Infof("+ %s", strings.Join(command, " "))
	}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if streamOutput {
		w = io.MultiWriter(&buf, s.Out)
	}
	cmd := s.exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.SetStdout(w)
	cmd.SetStderr(w)

	err := cmd.Run()
	if err == nil {
		return RunResult{ExitCode: 0, Output: buf.Bytes()}
	}
	var exitErr exec.ExitError
	if errors.As(err, &exitErr) {
		return RunResult{ExitCode: exitErr.ExitStatus(), Output: buf.Bytes()}
	}
	// The command never ran, e.g. the binary is missing.
	buf.WriteString(err.Error())
	return RunResult{ExitCode: -1, Output: buf.Bytes()}
}

func (s *LocalShell) Spawn(_ context.Context, command []string) (Background, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}
	if s.Verbose {
		log.Infof("+ %s &", strings.Join(command, " "))
	}
	// Not bound to the run context: the process lives until Terminate is called.
	cmd := s.exec.Command(command[0], command[1:]...)
	cmd.SetStdout(io.Discard)
	cmd.SetStderr(io.Discard)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "error starting %s", command[0])
	}
	return &localBackground{cmd: cmd}, nil
}

type localBackground struct {
	cmd exec.Cmd
}

func (b *localBackground) Terminate() error {
	b.cmd.Stop()
	err := b.cmd.Wait()
	var exitErr exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return errors.WithStack(err)
	}
	return nil
}
