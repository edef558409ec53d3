// Package toolrunner abstracts external process execution so the pipeline
// core can be exercised without spawning real tools and so hosts with a
// different process model can inject their own implementation.
package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result holds the outcome of a completed process.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
}

// Runner is the only polymorphic seam between the pipeline and the host's
// process facilities. Desktop builds use ExecRunner; tests use fakes.
type Runner interface {
	// Run executes argv to completion, capturing output. A zero timeout
	// means no deadline beyond ctx.
	Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error)

	// Start launches argv and returns a handle for streaming interaction.
	Start(ctx context.Context, argv []string) (Process, error)
}

// Process is a started external process.
type Process interface {
	// Stdout returns the line channel of the process's standard output.
	// The channel is closed when the stream ends.
	Stdout() <-chan string
	// Stderr returns the line channel of the process's standard error.
	Stderr() <-chan string
	// Kill terminates the process immediately (SIGKILL on POSIX).
	Kill() error
	// Wait blocks until exit and returns the exit code plus the captured
	// tail of stderr for diagnostics.
	Wait() (int, string, error)
	// Pid returns the OS process id, or 0 if unknown.
	Pid() int
}

// ErrTimeout is returned by Run when the per-call timeout elapsed.
var ErrTimeout = errors.New("toolrunner: timeout")

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

// NewExecRunner returns the standard desktop runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("toolrunner: empty argv")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.ReturnCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		return res, ErrTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Nonzero exit is reported through ReturnCode, not as an error.
		return res, nil
	}
	return res, err
}

// Start implements Runner.
func (r *ExecRunner) Start(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("toolrunner: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{
		cmd:        cmd,
		stdoutCh:   make(chan string, 64),
		stderrCh:   make(chan string, 64),
		stderrTail: newTailBuffer(100),
	}
	go scanLines(stdout, p.stdoutCh, nil)
	go scanLines(stderr, p.stderrCh, p.stderrTail)
	return p, nil
}
