// Package report defines the pipeline's failure taxonomy and turns any
// failure into a structured record the UI can surface.
package report

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrCancelled is returned when the user aborts the session. It is the
	// only failure that stops a batch.
	ErrCancelled = errors.New("download cancelled")

	// ErrPlaylistNotFound is returned when the extractor yields no info for
	// a URL.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrNoValidEncoder is returned when no registry entry matches an
	// available encoder for the target codec.
	ErrNoValidEncoder = errors.New("no capable encoder found")
)

// TimeoutError is returned after the stall watchdog exhausted all retry
// attempts for a URL.
type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("download timed out for %s", e.URL)
}

// ProbeError is returned when ffprobe fails on a downloaded file.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TranscodeError is returned when ffmpeg exits nonzero or leaves no output.
type TranscodeError struct {
	ReturnCode int
	Stderr     string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg failed with return code %d", e.ReturnCode)
}
