// Package pipeline orchestrates download batches: it walks the URL list,
// runs each URL through the extraction and transcode phases, and turns
// failures into surfaceable reports.
package pipeline

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/report"
)

// JobState is the lifecycle state of one URL in a batch.
type JobState string

// Job lifecycle states. Extracting covers the info pass before the first
// progress event; the download and process phases are driven by the
// progress stream.
const (
	JobStatePending    JobState = "pending"
	JobStateExtracting JobState = "extracting"
	JobStateDownload   JobState = "downloading"
	JobStateProcess    JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// Job is one URL's run through the pipeline.
type Job struct {
	ID  string
	URL string

	mu          sync.Mutex
	state       JobState
	message     string
	startedAt   time.Time
	completedAt time.Time
	rep         *report.ErrorReport
}

func newJob(url string, now time.Time) *Job {
	return &Job{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		URL:       url,
		state:     JobStatePending,
		startedAt: now,
	}
}

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Message returns the short outcome text, empty while running.
func (j *Job) Message() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

// Report returns the failure report, nil on success.
func (j *Job) Report() *report.ErrorReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rep
}

// Duration returns the wall time of the finished job.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt.Sub(j.startedAt)
}

// StartedAt returns when the job began.
func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// CompletedAt returns when the job reached a terminal state.
func (j *Job) CompletedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

func (j *Job) setState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// Terminal states never regress on a late progress event.
	switch j.state {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return
	}
	j.state = s
}

func (j *Job) complete(message string, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = JobStateCompleted
	j.message = message
	j.completedAt = now
}

func (j *Job) fail(rep report.ErrorReport, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rep.ShouldBreak {
		j.state = JobStateCancelled
	} else {
		j.state = JobStateFailed
	}
	j.message = rep.ShortMessage
	j.rep = &rep
	j.completedAt = now
}

// jobSink tracks the job's phase from the progress stream before
// forwarding events to the real sink.
type jobSink struct {
	job  *Job
	next event.ProgressSink
}

func (s *jobSink) OnDownloadProgress(ev event.ProgressEvent) {
	s.job.setState(JobStateDownload)
	s.next.OnDownloadProgress(ev)
}

func (s *jobSink) OnProcessProgress(ev event.ProgressEvent) {
	s.job.setState(JobStateProcess)
	s.next.OnProcessProgress(ev)
}
