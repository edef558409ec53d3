package toolrunner

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// execProcess wraps a started exec.Cmd with line-oriented output channels.
type execProcess struct {
	cmd        *exec.Cmd
	stdoutCh   chan string
	stderrCh   chan string
	stderrTail *tailBuffer
}

func (p *execProcess) Stdout() <-chan string { return p.stdoutCh }
func (p *execProcess) Stderr() <-chan string { return p.stderrCh }

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() (int, string, error) {
	err := p.cmd.Wait()
	code := 0
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	return code, p.stderrTail.String(), err
}

// scanLines pumps lines from r into ch, optionally recording them in tail.
// ch is closed when r is exhausted.
func scanLines(r io.Reader, ch chan<- string, tail *tailBuffer) {
	defer close(ch)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if tail != nil {
			tail.Append(line)
		}
		ch <- line
	}
}

// tailBuffer keeps the most recent lines for error reporting.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.max {
		b.lines = b.lines[1:]
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
