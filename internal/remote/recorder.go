package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fdep/pkg/cmdutil"
)

// Call is one command seen by a Recorder.
type Call struct {
	Host    Host
	Command Command
}

// Recorder is a Transport that records commands instead of running them.
// It is shared by the tests of every package that drives remote commands.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	failures []string
	outputs  map[string]string
	closed   bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{outputs: make(map[string]string)}
}

// FailOn makes every command whose line contains substr exit with code 1.
func (r *Recorder) FailOn(substr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, substr)
}

// Respond sets the output of commands whose line contains substr.
func (r *Recorder) Respond(substr, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[substr] = output
}

func (r *Recorder) Exec(_ context.Context, host Host, cmd Command) (*cmdutil.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Host: host, Command: cmd})

	result := &cmdutil.Result{}
	for substr, out := range r.outputs {
		if strings.Contains(cmd.Line, substr) {
			result.Output = []byte(out)
		}
	}
	if cmd.Stream != nil && len(result.Output) > 0 {
		_, _ = cmd.Stream.Write(result.Output)
	}

	for _, substr := range r.failures {
		if strings.Contains(cmd.Line, substr) {
			result.ExitCode = 1
			return result, fmt.Errorf("[%s] command exited with code 1: %s", host, cmd.Line)
		}
	}
	return result, nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.calls))
	for i, c := range r.calls {
		lines[i] = c.Command.Line
	}
	return lines
}

// Index returns the position of the first command line containing substr,
// or -1.
func (r *Recorder) Index(substr string) int {
	for i, line := range r.Lines() {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

// Count returns how many command lines contain substr.
func (r *Recorder) Count(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
