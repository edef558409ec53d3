package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// progressSnapshot is one decoded block of the -progress pipe:1 stream.
type progressSnapshot struct {
	OutTimeSeconds float64
	TotalSize      int64
	SpeedBps       float64
	Finished       bool
}

// progressParser accumulates the key=value lines ffmpeg writes to stdout
// under -progress pipe:1. A block ends with a "progress=" line; feed returns
// the completed snapshot at that point.
type progressParser struct {
	durationSeconds float64

	outTimeSeconds float64
	totalSize      int64
	finished       bool

	lastFlush time.Time
	lastSize  int64
	now       func() time.Time
}

func newProgressParser(durationSeconds float64) *progressParser {
	return &progressParser{
		durationSeconds: durationSeconds,
		now:             time.Now,
	}
}

// feed consumes one stdout line. The returned bool is true when the line
// completed a block and the snapshot is ready.
func (p *progressParser) feed(line string) (progressSnapshot, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return progressSnapshot{}, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms predates out_time_us.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.outTimeSeconds = float64(us) / 1e6
		}
	case "out_time":
		// Same value as the microsecond keys, reparsed; kept as a
		// fallback for builds that omit out_time_us.
		if sec := parseClock(value); sec > 0 {
			p.outTimeSeconds = sec
		}
	case "total_size":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.totalSize = n
		}
	case "progress":
		p.finished = value == "end"
		return p.snapshot(), true
	}
	return progressSnapshot{}, false
}

func (p *progressParser) snapshot() progressSnapshot {
	snap := progressSnapshot{
		OutTimeSeconds: p.outTimeSeconds,
		TotalSize:      p.totalSize,
		Finished:       p.finished,
	}
	now := p.now()
	if !p.lastFlush.IsZero() {
		if dt := now.Sub(p.lastFlush).Seconds(); dt > 0 && p.totalSize >= p.lastSize {
			snap.SpeedBps = float64(p.totalSize-p.lastSize) / dt
		}
	}
	p.lastFlush = now
	p.lastSize = p.totalSize
	return snap
}

// Fraction converts a snapshot to the [0, 1] progress scale: clamped below
// 0.99 while running, exactly 1.0 once the stream reports end.
func (p *progressParser) Fraction(snap progressSnapshot) float64 {
	if snap.Finished {
		return 1.0
	}
	if p.durationSeconds <= 0 {
		return 0
	}
	f := snap.OutTimeSeconds / p.durationSeconds
	if f < 0 {
		return 0
	}
	if f >= 0.99 {
		return 0.989
	}
	return f
}

// parseClock parses ffmpeg's HH:MM:SS.micro timestamps into seconds.
func parseClock(s string) float64 {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return float64(h*3600+m*60) + sec
}
