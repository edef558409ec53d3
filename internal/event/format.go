package event

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in IEC units ("12 MiB"). Negative and
// zero counts render as "0 B".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatSpeed renders a transfer rate in IEC units per second. An unknown
// rate renders as "---" so progress rows keep a stable width.
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return "---"
	}
	return humanize.IBytes(uint64(bps)) + "/s"
}

// FormatFraction renders a [0, 1] fraction as a percentage with one
// decimal ("42.0%").
func FormatFraction(f float64) string {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return fmt.Sprintf("%.1f%%", f*100)
}
