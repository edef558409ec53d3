package ytdlp

import (
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// Reaper terminates child processes spawned during a download attempt. The
// snapshot/diff technique only touches PIDs that appeared after the attempt
// started, leaving unrelated children alone.
type Reaper struct {
	logger *slog.Logger
}

// NewReaper returns a reaper for this process's children.
func NewReaper(logger *slog.Logger) *Reaper {
	return &Reaper{logger: logger}
}

// Snapshot returns the current set of direct child PIDs. Enumeration
// failures yield an empty set, which makes the later reap a no-op.
func (r *Reaper) Snapshot() map[int32]struct{} {
	pids := make(map[int32]struct{})
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return pids
	}
	children, err := self.Children()
	if err != nil {
		return pids
	}
	for _, child := range children {
		pids[child.Pid] = struct{}{}
	}
	return pids
}

// ReapNew terminates every direct child not present in the before snapshot.
func (r *Reaper) ReapNew(before map[int32]struct{}) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	children, err := self.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		if _, existed := before[child.Pid]; existed {
			continue
		}
		r.logger.Debug("terminating child process", slog.Int("pid", int(child.Pid)))
		if err := child.Terminate(); err != nil {
			r.logger.Warn("could not terminate child",
				slog.Int("pid", int(child.Pid)),
				slog.Any("error", err))
		}
	}
}
