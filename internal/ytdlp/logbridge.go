package ytdlp

import (
	"log/slog"
	"strings"

	"github.com/fetcharr/fetcharr/internal/event"
)

// Status labels fired by the log bridge.
const (
	StatusExtractingCookies  = "Extracting cookies"
	StatusSolvingJSChallenge = "Solving JS challenge"
	StatusFetchingInfo       = "Fetching video info"
)

// statusPattern maps a yt-dlp log substring to the label shown while that
// phase runs. Patterns are checked in order; the first match wins.
type statusPattern struct {
	substrings []string
	label      string
}

var statusPatterns = []statusPattern{
	{substrings: []string{"extracting cookies from"}, label: StatusExtractingCookies},
	{substrings: []string{"solving js challenge"}, label: StatusSolvingJSChallenge},
	{substrings: []string{"extracting url", "downloading webpage", "downloading player"}, label: StatusFetchingInfo},
}

// LogBridge turns yt-dlp's log output into status updates. Every matched
// line also counts as activity for the stall detector: during cookie
// extraction or JS challenges the download makes no byte progress but is
// not stuck.
type LogBridge struct {
	status event.StatusSink
	stall  *StallDetector
	logger *slog.Logger
}

// NewLogBridge wires the bridge to a status sink and stall detector; either
// may be nil.
func NewLogBridge(status event.StatusSink, stall *StallDetector, logger *slog.Logger) *LogBridge {
	if status == nil {
		status = event.NopStatusSink{}
	}
	return &LogBridge{status: status, stall: stall, logger: logger}
}

// Observe scans one log line for a known phase marker.
func (b *LogBridge) Observe(line string) {
	b.logger.Debug("yt-dlp", slog.String("line", line))
	lower := strings.ToLower(line)
	for _, p := range statusPatterns {
		for _, sub := range p.substrings {
			if strings.Contains(lower, sub) {
				if b.stall != nil {
					b.stall.Tick()
				}
				b.status.OnStatus(p.label)
				return
			}
		}
	}
}
