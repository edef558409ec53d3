package ytdlp

import (
	"sync"
	"time"
)

// StallDetector is a watchdog over download activity. Progress callbacks
// and matched log lines call Tick; the retry loop polls IsStalled and
// restarts the attempt when the timeout elapses with no activity.
type StallDetector struct {
	mu           sync.Mutex
	lastActivity time.Time
	timeout      time.Duration

	now func() time.Time
}

// NewStallDetector returns a detector that considers the download stalled
// after timeout without a Tick. The clock starts at construction.
func NewStallDetector(timeout time.Duration) *StallDetector {
	d := &StallDetector{timeout: timeout, now: time.Now}
	d.lastActivity = d.now()
	return d
}

// Tick records activity.
func (d *StallDetector) Tick() {
	d.mu.Lock()
	d.lastActivity = d.now()
	d.mu.Unlock()
}

// IsStalled reports whether the timeout has elapsed since the last Tick.
func (d *StallDetector) IsStalled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Sub(d.lastActivity) > d.timeout
}
