package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/report"
)

// Downloader runs the full extract/download/transcode flow for one URL.
type Downloader interface {
	Download(ctx context.Context, url string) error
}

// DownloaderFactory builds the per-URL downloader. The orchestrator passes
// a fresh progress sink per URL so job phases can be tracked; the factory
// decides what is shared across the batch (session, cancel token, tools).
type DownloaderFactory func(progress event.ProgressSink, status event.StatusSink) Downloader

// BatchResult is the outcome of one orchestrator run.
type BatchResult struct {
	Jobs []*Job

	// RemainingQueue holds the queue URLs that did not complete; completed
	// entries are dropped, failed and cancelled ones are kept for a later
	// retry.
	RemainingQueue []string
}

// Orchestrator walks the configured URL list and drives each entry through
// the pipeline, one at a time.
type Orchestrator struct {
	newDownloader DownloaderFactory
	progress      event.ProgressSink
	status        event.StatusSink
	cancel        *event.CancelToken
	store         *history.Store
	logger        *slog.Logger

	now func() time.Time
}

// NewOrchestrator wires an orchestrator. store may be nil to skip history
// persistence.
func NewOrchestrator(
	factory DownloaderFactory,
	progress event.ProgressSink,
	status event.StatusSink,
	cancel *event.CancelToken,
	store *history.Store,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		newDownloader: factory,
		progress:      progress,
		status:        status,
		cancel:        cancel,
		store:         store,
		logger:        logger,
		now:           time.Now,
	}
}

// Run processes the main URL followed by the queue. A cancelled job stops
// the batch; any other failure moves on to the next URL.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.DownloadConfig) *BatchResult {
	urls := cfg.URLs()
	res := &BatchResult{
		RemainingQueue: append([]string(nil), cfg.Queue...),
	}
	if len(urls) == 0 {
		return res
	}

	for i, url := range urls {
		if o.cancel.IsCancelled() {
			break
		}
		job := newJob(url, o.now())
		res.Jobs = append(res.Jobs, job)

		status := o.counterSink(i+1, len(urls))
		dl := o.newDownloader(&jobSink{job: job, next: o.progress}, status)

		status.OnStatus("Preparing...")
		job.setState(JobStateExtracting)
		err := dl.Download(ctx, url)
		if err == nil {
			o.finishJob(ctx, res, job, cfg.DestDir, status)
			continue
		}

		rep := report.Build(err)
		job.fail(rep, o.now())
		status.OnStatus(rep.ShortMessage)
		o.logger.Warn("download failed",
			slog.String("url", url),
			slog.String("message", rep.ShortMessage),
			slog.String("color", string(rep.Color)))
		o.record(ctx, job, "")

		if rep.ShouldBreak {
			break
		}
	}
	return res
}

// finishJob marks success, announces it, and drops the URL from the queue.
func (o *Orchestrator) finishJob(ctx context.Context, res *BatchResult, job *Job, destDir string, status event.StatusSink) {
	job.complete("Download finished", o.now())
	status.OnStatus(fmt.Sprintf("Download finished: %s", destDir))
	o.logger.Info("download finished",
		slog.String("url", job.URL),
		slog.Duration("elapsed", job.Duration()))
	o.record(ctx, job, destDir)
	res.RemainingQueue = removeURL(res.RemainingQueue, job.URL)
}

// counterSink prefixes status text with the batch position when more than
// one URL is queued.
func (o *Orchestrator) counterSink(i, total int) event.StatusSink {
	if total <= 1 {
		return o.status
	}
	return prefixSink{prefix: fmt.Sprintf("(%d/%d) ", i, total), next: o.status}
}

func (o *Orchestrator) record(ctx context.Context, job *Job, destDir string) {
	if o.store == nil {
		return
	}
	rec := &history.Record{
		ID:          job.ID,
		URL:         job.URL,
		Message:     job.Message(),
		OutputPath:  destDir,
		StartedAt:   job.StartedAt(),
		CompletedAt: job.CompletedAt(),
		DurationMs:  job.Duration().Milliseconds(),
	}
	switch job.State() {
	case JobStateCompleted:
		rec.State = history.StateCompleted
	case JobStateCancelled:
		rec.State = history.StateCancelled
	default:
		rec.State = history.StateFailed
	}
	if err := o.store.Add(ctx, rec); err != nil {
		o.logger.Warn("recording history failed",
			slog.String("url", job.URL),
			slog.String("error", err.Error()))
	}
}

type prefixSink struct {
	prefix string
	next   event.StatusSink
}

func (s prefixSink) OnStatus(message string) {
	s.next.OnStatus(s.prefix + message)
}

func removeURL(queue []string, url string) []string {
	out := queue[:0]
	for _, u := range queue {
		if u != url {
			out = append(out, u)
		}
	}
	return out
}
