package capabilities

import (
	"context"
	"strings"
	"sync"
)

// FakeShell returns scripted results and records every command it is asked to run.
type FakeShell struct {
	// Responses maps a space-joined command to the results returned for consecutive calls.
	// Once only one result is left it is returned for every further call.
	Responses map[string][]RunResult
	// Returned for commands with no scripted response.
	Default RunResult
	// Commands run so far, space-joined, in order.
	Commands []string
	// Commands spawned so far, space-joined, in order.
	Spawned []string
	// If set, Spawn fails with this error.
	SpawnErr    error
	Backgrounds []*FakeBackground

	mu sync.Mutex
}

// NewFakeShell returns a FakeShell answering every command with exit code 0 and "output".
func NewFakeShell() *FakeShell {
	return &FakeShell{
		Responses: map[string][]RunResult{},
		Default:   RunResult{ExitCode: 0, Output: []byte("output")},
	}
}

// Respond scripts the results returned for command.
func (s *FakeShell) Respond(command string, results ...RunResult) *FakeShell {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses[command] = append(s.Responses[command], results...)
	return s
}

// Calls returns how many times command was run.
func (s *FakeShell) Calls(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Commands {
		if c == command {
			n++
		}
	}
	return n
}

func (s *FakeShell) Run(_ context.Context, command []string, _ bool) RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.Join(command, " ")
	s.Commands = append(s.Commands, key)
	results, ok := s.Responses[key]
	if !ok || len(results) == 0 {
		return s.Default
	}
	result := results[0]
	if len(results) > 1 {
		s.Responses[key] = results[1:]
	}
	return result
}

func (s *FakeShell) Spawn(_ context.Context, command []string) (Background, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spawned = append(s.Spawned, strings.Join(command, " "))
	if s.SpawnErr != nil {
		return nil, s.SpawnErr
	}
	b := &FakeBackground{}
	s.Backgrounds = append(s.Backgrounds, b)
	return b, nil
}

// FakeBackground records whether it was terminated.
type FakeBackground struct {
	Terminated bool
}

func (b *FakeBackground) Terminate() error {
	b.Terminated = true
	return nil
}
