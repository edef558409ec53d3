package toolrunner

import (
	"context"
	"sync"
	"time"
)

// FakeRunner is a scripted Runner for tests. Each expected command is keyed
// by its binary name (argv[0] basename is not applied; callers script full
// paths or bare names as they invoke them).
type FakeRunner struct {
	mu sync.Mutex

	// RunResults maps argv[0] to the canned result returned by Run.
	RunResults map[string]Result
	// RunErr, when set for argv[0], is returned alongside the zero Result.
	RunErr map[string]error
	// RunFunc, when set, services Run calls instead of the maps.
	RunFunc func(ctx context.Context, argv []string, timeout time.Duration) (Result, error)
	// StartFunc, when set, services Start calls.
	StartFunc func(ctx context.Context, argv []string) (Process, error)

	// Calls records every argv passed to Run or Start, in order.
	Calls [][]string
	// RunTimeouts records the timeout passed to each Run call.
	RunTimeouts []time.Duration
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		RunResults: make(map[string]Result),
		RunErr:     make(map[string]error),
	}
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string(nil), argv...))
	f.RunTimeouts = append(f.RunTimeouts, timeout)
	fn := f.RunFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, argv, timeout)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.RunErr[argv[0]]; ok {
		return Result{}, err
	}
	return f.RunResults[argv[0]], nil
}

// Start implements Runner.
func (f *FakeRunner) Start(ctx context.Context, argv []string) (Process, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string(nil), argv...))
	fn := f.StartFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, argv)
	}
	return NewFakeProcess(nil, nil, 0, ""), nil
}

// CallCount returns how many commands were issued for the given binary.
func (f *FakeRunner) CallCount(bin string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if len(c) > 0 && c[0] == bin {
			n++
		}
	}
	return n
}

// FakeProcess is a Process fed from canned output lines.
type FakeProcess struct {
	stdout chan string
	stderr chan string

	code   int
	tail   string
	killed chan struct{}
	once   sync.Once

	// WaitDelay, when nonzero, makes Wait block for the duration unless
	// the process is killed first.
	WaitDelay time.Duration
}

// NewFakeProcess builds a process that emits the given lines and exits with
// code, reporting stderrTail from Wait.
func NewFakeProcess(stdoutLines, stderrLines []string, code int, stderrTail string) *FakeProcess {
	p := &FakeProcess{
		stdout: make(chan string, len(stdoutLines)+1),
		stderr: make(chan string, len(stderrLines)+1),
		code:   code,
		tail:   stderrTail,
		killed: make(chan struct{}),
	}
	for _, l := range stdoutLines {
		p.stdout <- l
	}
	for _, l := range stderrLines {
		p.stderr <- l
	}
	close(p.stdout)
	close(p.stderr)
	return p
}

func (p *FakeProcess) Stdout() <-chan string { return p.stdout }
func (p *FakeProcess) Stderr() <-chan string { return p.stderr }
func (p *FakeProcess) Pid() int              { return 4242 }

func (p *FakeProcess) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

// Killed reports whether Kill was called.
func (p *FakeProcess) Killed() bool {
	select {
	case <-p.killed:
		return true
	default:
		return false
	}
}

func (p *FakeProcess) Wait() (int, string, error) {
	if p.WaitDelay > 0 {
		select {
		case <-time.After(p.WaitDelay):
		case <-p.killed:
			return -1, p.tail, nil
		}
	}
	if p.Killed() {
		return -1, p.tail, nil
	}
	return p.code, p.tail, nil
}
