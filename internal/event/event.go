// Package event provides the cancellation and progress substrate shared by
// the download and transcode phases. The pipeline core owns no references to
// UI state; it only talks to the narrow sinks defined here.
package event

import "sync/atomic"

// Phase identifies which half of the pipeline emitted a progress event.
type Phase string

const (
	// PhaseDownload covers extraction and download progress from yt-dlp.
	PhaseDownload Phase = "download"
	// PhaseProcess covers ffmpeg remux/re-encode progress.
	PhaseProcess Phase = "process"
)

// ProgressEvent is a single progress update from a worker thread.
type ProgressEvent struct {
	Phase  Phase
	Status string // "downloading", "finished", ...

	ProcessedBytes     int64
	TotalBytes         int64
	TotalBytesEstimate int64
	SpeedBps           float64

	// ProgressFraction is in [0, 1]. While a phase is running the value is
	// clamped below 0.99; the terminal event carries exactly 1.0.
	ProgressFraction float64

	// ActionLabel names the process action ("Remuxing", "Re-encoding").
	ActionLabel string

	// PlaylistIndex and PlaylistCount are set when the event belongs to a
	// playlist entry; both are zero otherwise.
	PlaylistIndex int
	PlaylistCount int
}

// ProgressSink receives progress events. Callbacks are invoked from worker
// goroutines and must not block the caller for more than a few milliseconds;
// long work belongs behind a Coalescer.
type ProgressSink interface {
	OnDownloadProgress(ev ProgressEvent)
	OnProcessProgress(ev ProgressEvent)
}

// StatusSink receives human-readable phase text ("Extracting cookies...").
type StatusSink interface {
	OnStatus(message string)
}

// CancelToken carries a monotone cancelled state: once set it stays set for
// the token's life. A new token is created per download session.
// Cancellation is cooperative; consumers poll IsCancelled at phase
// boundaries and inside progress callbacks.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a fresh, uncancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token. Idempotent and safe for concurrent use.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called. Cheap non-blocking read.
func (t *CancelToken) IsCancelled() bool {
	return t.cancelled.Load()
}

// NopProgressSink discards all progress events.
type NopProgressSink struct{}

func (NopProgressSink) OnDownloadProgress(ProgressEvent) {}
func (NopProgressSink) OnProcessProgress(ProgressEvent)  {}

// NopStatusSink discards all status text.
type NopStatusSink struct{}

func (NopStatusSink) OnStatus(string) {}
