package capabilities

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"
)

// Process is a live operating system process.
type Process interface {
	Name() string
	Kill() error
}

// Processes enumerates live operating system processes.
type Processes interface {
	Processes() ([]Process, error)
}

// SystemProcesses enumerates the processes of the local machine.
type SystemProcesses struct{}

func (SystemProcesses) Processes() ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make([]Process, 0, len(procs))
	for _, p := range procs {
		result = append(result, &systemProcess{p: p})
	}
	return result, nil
}

type systemProcess struct {
	p *process.Process
}

func (s *systemProcess) Name() string {
	name, err := s.p.Name()
	if err != nil {
		// The process may have exited since it was listed.
		log.WithError(err).Debugf("could not read name of process %d", s.p.Pid)
		return ""
	}
	return name
}

func (s *systemProcess) Kill() error {
	return errors.Wrapf(s.p.Kill(), "error killing process %d", s.p.Pid)
}

// FakeProcess records whether it was killed.
type FakeProcess struct {
	ProcessName string
	Killed      bool
}

func (p *FakeProcess) Name() string {
	return p.ProcessName
}

func (p *FakeProcess) Kill() error {
	log.Infof("killing %s", p.ProcessName)
	p.Killed = true
	return nil
}

// FakeProcesses returns a fixed list of fake processes.
type FakeProcesses struct {
	List []*FakeProcess
}

// NewFakeProcesses returns FakeProcesses with one process per name. Without names a single
// "consensus" process is listed.
func NewFakeProcesses(names ...string) *FakeProcesses {
	if len(names) == 0 {
		names = []string{"consensus"}
	}
	fp := &FakeProcesses{}
	for _, name := range names {
		fp.List = append(fp.List, &FakeProcess{ProcessName: name})
	}
	return fp
}

func (f *FakeProcesses) Processes() ([]Process, error) {
	result := make([]Process, 0, len(f.List))
	for _, p := range f.List {
		result = append(result, p)
	}
	return result, nil
}
