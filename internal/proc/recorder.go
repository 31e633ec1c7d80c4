package proc

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// String returns the command line of the call.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Recorder is a Runner that records invocations instead of executing them.
// It is used by tests and by the mock camera.
type Recorder struct {
	// OnRun, when set, decides the result of Run calls.
	OnRun func(c Call) ([]byte, error)
	// Stream is the stdout content of started processes.
	Stream []byte

	mu        sync.Mutex
	calls     []Call
	processes []*FakeProcess
}

// Run implements Runner.
func (r *Recorder) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	c := r.record(name, args)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.OnRun != nil {
		return r.OnRun(c)
	}
	return nil, nil
}

// Start implements Runner.
func (r *Recorder) Start(ctx context.Context, w io.Writer, name string, args ...string) (Process, error) {
	r.record(name, args)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &FakeProcess{done: make(chan struct{})}
	if w != nil {
		go func() {
			_, _ = w.Write(r.Stream)
		}()
	} else {
		p.stdout = bytes.NewReader(r.Stream)
	}
	r.mu.Lock()
	r.processes = append(r.processes, p)
	r.mu.Unlock()
	return p, nil
}

func (r *Recorder) record(name string, args []string) Call {
	c := Call{Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	return c
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the recorded command lines.
func (r *Recorder) Commands() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Processes returns the processes started so far.
func (r *Recorder) Processes() []*FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeProcess(nil), r.processes...)
}

// Reset forgets all recorded calls and processes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.processes = nil
	r.mu.Unlock()
}

// FakeProcess is the Process returned by Recorder.Start.
type FakeProcess struct {
	stdout io.Reader

	mu         sync.Mutex
	terminated bool
	done       chan struct{}
}

func (p *FakeProcess) Stdout() io.Reader { return p.stdout }

func (p *FakeProcess) Terminate(time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.terminated {
		p.terminated = true
		close(p.done)
	}
	return nil
}

func (p *FakeProcess) Wait() error {
	<-p.done
	return nil
}

// Terminated reports whether Terminate was called.
func (p *FakeProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}
