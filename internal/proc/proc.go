// Package proc runs the external tools the booth depends on (gphoto2, gm,
// aplay, lp) behind a small interface so the callers can be tested without
// the tools installed.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fraxinas/photobooth/internal/debug"
)

// Runner starts external commands.
type Runner interface {
	// Run executes the command to completion and returns its combined output.
	// A non-zero exit status is returned as *ExitError.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start launches a long-running command. When stdout is nil the output
	// is available as a pipe through Process.Stdout.
	Start(ctx context.Context, stdout io.Writer, name string, args ...string) (Process, error)
}

// Process is a running command started by a Runner.
type Process interface {
	// Stdout is the command's standard output. It is nil when the command
	// was started with an explicit writer.
	Stdout() io.Reader
	// Terminate sends SIGTERM, waits up to the grace period, then kills.
	Terminate(grace time.Duration) error
	// Wait blocks until the command exits.
	Wait() error
}

// ExitError reports a failed command together with its output.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exec is the real Runner backed by os/exec.
type Exec struct {
	// Dir is the working directory for every command; empty = current.
	Dir string
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	debug.Command(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, wrapExit(name, args, out, err)
	}
	return out, nil
}

// Start implements Runner.
func (e *Exec) Start(ctx context.Context, w io.Writer, name string, args ...string) (Process, error) {
	debug.Command(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 2 * time.Second

	p := &process{cmd: cmd, name: name, args: args}
	cmd.Stderr = &p.stderr

	// An os.Pipe instead of StdoutPipe keeps the read end open after Wait,
	// so buffered frames can still be drained.
	var pw *os.File
	if w != nil {
		cmd.Stdout = w
	} else {
		pr, wr, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("%s: stdout pipe: %w", name, err)
		}
		cmd.Stdout = wr
		p.stdout, p.pipe, pw = pr, pr, wr
	}

	err := cmd.Start()
	if pw != nil {
		pw.Close()
	}
	if err != nil {
		if p.pipe != nil {
			p.pipe.Close()
		}
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	p.done = make(chan struct{})
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	name   string
	args   []string
	stdout io.Reader
	pipe   *os.File
	stderr lockedBuffer

	done chan struct{}
	err  error
}

func (p *process) Stdout() io.Reader { return p.stdout }

func (p *process) Wait() error {
	<-p.done
	if p.err != nil {
		return wrapExit(p.name, p.args, p.stderr.Bytes(), p.err)
	}
	return nil
}

func (p *process) Terminate(grace time.Duration) error {
	select {
	case <-p.done:
		p.closePipe()
		return nil
	default:
	}

	debug.Verbose("terminating %s (pid %d)", p.name, p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal %s: %w", p.name, err)
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		debug.Warn("%s did not exit after %v, killing", p.name, grace)
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	p.closePipe()
	// A terminated process exits non-zero by definition.
	return nil
}

func (p *process) closePipe() {
	if p.pipe != nil {
		p.pipe.Close()
	}
}

// lockedBuffer collects stderr written from the exec copy goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func wrapExit(name string, args []string, out []byte, err error) error {
	ee := &ExitError{
		Command:  strings.TrimSpace(name + " " + strings.Join(args, " ")),
		ExitCode: -1,
		Output:   strings.TrimSpace(string(out)),
		Err:      err,
	}
	var xe *exec.ExitError
	if errors.As(err, &xe) {
		ee.ExitCode = xe.ExitCode()
	}
	return ee
}
