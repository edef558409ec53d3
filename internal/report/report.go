package report

import (
	"errors"
	"fmt"
	"strings"
)

// Color is the severity hue the UI renders a report with.
type Color string

// Severity colors.
const (
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
)

// ErrorReport is an immutable, UI-surfaceable failure record.
type ErrorReport struct {
	ShortMessage string
	Detail       string
	Color        Color
	// ShouldBreak stops the batch; only user cancellation sets it.
	ShouldBreak bool
	HasDetail   bool
}

// Build classifies err into a report.
//
// Cancellation breaks the batch; every other failure is per-URL and the
// orchestrator continues with the next entry. Unexpected errors carry their
// full text as detail for the copyable error dialog.
func Build(err error) ErrorReport {
	if errors.Is(err, ErrCancelled) {
		return ErrorReport{
			ShortMessage: "Download cancelled.",
			Color:        ColorYellow,
			ShouldBreak:  true,
		}
	}
	if errors.Is(err, ErrPlaylistNotFound) {
		return ErrorReport{
			ShortMessage: "Playlist not found. Check the URL or disable playlist mode.",
			Color:        ColorYellow,
		}
	}
	if errors.Is(err, ErrNoValidEncoder) {
		return ErrorReport{
			ShortMessage: "No capable encoder found",
			Color:        ColorRed,
		}
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return ErrorReport{
			ShortMessage: fmt.Sprintf("Timeout for %s", timeout.URL),
			Color:        ColorYellow,
		}
	}

	msg := strings.TrimPrefix(err.Error(), "ERROR: ")
	detail := err.Error()
	var transcode *TranscodeError
	if errors.As(err, &transcode) && transcode.Stderr != "" {
		detail = detail + "\n" + transcode.Stderr
	}
	var probe *ProbeError
	if errors.As(err, &probe) && probe.Stderr != "" {
		detail = detail + "\n" + probe.Stderr
	}
	return ErrorReport{
		ShortMessage: "Download error: " + msg,
		Detail:       detail,
		Color:        ColorRed,
		HasDetail:    true,
	}
}
