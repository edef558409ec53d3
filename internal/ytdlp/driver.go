package ytdlp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

// FilePostProcessor handles the transcode phase for one downloaded file.
type FilePostProcessor interface {
	PostProcess(ctx context.Context, path string, mode config.VideoCodecMode) error
}

// Driver runs the download half of the pipeline for single URLs: extract,
// download under a stall watchdog with retries, then hand each downloaded
// file to the post-processor.
type Driver struct {
	session  *Session
	progress event.ProgressSink
	cancel   *event.CancelToken
	bridge   *LogBridge
	stall    *StallDetector
	reaper   *Reaper
	post     FilePostProcessor
	logger   *slog.Logger

	pollInterval time.Duration
	sleep        func(time.Duration)
}

// NewDriver wires a driver around an existing session. The cancel token is
// shared with the transcode phase and the orchestrator.
func NewDriver(
	session *Session,
	progress event.ProgressSink,
	status event.StatusSink,
	cancel *event.CancelToken,
	post FilePostProcessor,
	logger *slog.Logger,
) *Driver {
	stall := NewStallDetector(session.tools.StallTimeout)
	return &Driver{
		session:      session,
		progress:     progress,
		cancel:       cancel,
		bridge:       NewLogBridge(status, stall, logger),
		stall:        stall,
		reaper:       NewReaper(logger),
		post:         post,
		logger:       logger,
		pollInterval: 5 * time.Second,
		sleep:        time.Sleep,
	}
}

// Download runs the full flow for one URL.
func (d *Driver) Download(ctx context.Context, url string) error {
	if d.cancel.IsCancelled() {
		return report.ErrCancelled
	}

	peek, err := d.peek(ctx, url)
	if err != nil {
		return err
	}
	if peek.Info == nil {
		return report.ErrPlaylistNotFound
	}
	d.logger.Info("starting download",
		slog.String("url", url),
		slog.String("title", peek.Info.Title),
		slog.Int64("expected_bytes", peek.TotalSize))

	outputs := &outputList{}
	if err := d.runWithRetry(ctx, url, outputs); err != nil {
		return err
	}
	return d.finish(ctx, peek.Info, outputs.all())
}

// peek runs the info pass under the extraction deadline, polling the
// cancel token so a hung extractor can be killed through its context.
func (d *Driver) peek(ctx context.Context, url string) (*PeekResult, error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	defer cancelCtx()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if d.cancel.IsCancelled() {
					cancelCtx()
					return
				}
			}
		}
	}()

	peek, err := d.session.Peek(ctx, url)
	if d.cancel.IsCancelled() {
		return nil, report.ErrCancelled
	}
	return peek, err
}

// runWithRetry executes download attempts under the stall watchdog. Only
// stalls retry; real failures and cancellation propagate immediately.
func (d *Driver) runWithRetry(ctx context.Context, url string, outputs *outputList) error {
	maxRetries := d.session.tools.MaxRetries
	for attempt := 0; attempt < maxRetries; attempt++ {
		if d.cancel.IsCancelled() {
			return report.ErrCancelled
		}
		before := d.reaper.Snapshot()
		d.stall.Tick()

		stalled, err := d.runAttempt(ctx, url, before, outputs)
		if err != nil {
			return err
		}
		if !stalled {
			return nil
		}
		// Backoff only between attempts; the last stall reports straight away.
		if attempt == maxRetries-1 {
			break
		}

		backoff := d.session.tools.BaseBackoff * time.Duration(1<<attempt)
		d.logger.Warn("download stalled, backing off",
			slog.String("url", url),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff))
		d.sleep(backoff)
	}
	return &report.TimeoutError{URL: url}
}

type attemptResult struct {
	code       int
	stderrTail string
	waitErr    error
}

// runAttempt runs one yt-dlp invocation, polling for cancellation and
// stalls while the process lives. The bool is true when the attempt was
// torn down because of a stall.
func (d *Driver) runAttempt(ctx context.Context, url string, before map[int32]struct{}, outputs *outputList) (bool, error) {
	proc, err := d.session.runner.Start(ctx, d.session.downloadArgv(url))
	if err != nil {
		return false, err
	}

	done := make(chan attemptResult, 1)
	go d.consume(proc, outputs, done)

	for {
		select {
		case res := <-done:
			if d.cancel.IsCancelled() {
				return false, report.ErrCancelled
			}
			if res.waitErr != nil {
				return false, res.waitErr
			}
			if res.code != 0 {
				return false, downloadError(res.code, res.stderrTail)
			}
			return false, nil

		case <-time.After(d.pollInterval):
			if d.cancel.IsCancelled() {
				d.reaper.ReapNew(before)
				_ = proc.Kill()
				<-done
				return false, report.ErrCancelled
			}
			if d.stall.IsStalled() {
				d.reaper.ReapNew(before)
				_ = proc.Kill()
				<-done
				return true, nil
			}
		}
	}
}

// consume pumps the process output: progress lines become events and tick
// the watchdog, printed output paths are collected, everything else feeds
// the log bridge.
func (d *Driver) consume(proc toolrunner.Process, outputs *outputList, done chan<- attemptResult) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for line := range proc.Stderr() {
			d.bridge.Observe(line)
		}
	}()

	lastFraction := 0.0
	for line := range proc.Stdout() {
		if p, ok := parseProgressLine(line); ok {
			d.stall.Tick()
			if d.cancel.IsCancelled() {
				continue
			}
			lastFraction = p.fraction(lastFraction)
			d.progress.OnDownloadProgress(p.event(lastFraction))
			continue
		}
		if path, ok := parseOutputLine(line); ok {
			d.stall.Tick()
			outputs.add(path)
			continue
		}
		d.bridge.Observe(line)
	}
	wg.Wait()

	code, tail, err := proc.Wait()
	done <- attemptResult{code: code, stderrTail: tail, waitErr: err}
}

// finish hands the downloaded files to the post-processor. Audio-only
// downloads are already final; yt-dlp's own extract-audio pass produced
// the output.
func (d *Driver) finish(ctx context.Context, info *Info, paths []string) error {
	if d.session.cfg.AudioOnly {
		return nil
	}
	mode := d.session.cfg.VideoCodec
	if len(paths) == 0 {
		paths = d.fallbackPaths(info)
	}

	for _, path := range paths {
		if d.cancel.IsCancelled() {
			return report.ErrCancelled
		}
		if err := d.post.PostProcess(ctx, path, mode); err != nil {
			return err
		}
	}
	if d.cancel.IsCancelled() {
		return report.ErrCancelled
	}
	return nil
}

// fallbackPaths reconstructs the output locations from the info pass, for
// yt-dlp builds that do not honor the print hook.
func (d *Driver) fallbackPaths(info *Info) []string {
	if info.Type == "playlist" {
		var paths []string
		for _, entry := range info.Entries {
			// Failed entries are null under ignoreerrors.
			if entry == nil {
				continue
			}
			paths = append(paths, d.session.PreparedFilename(entry))
		}
		return paths
	}
	return []string{d.session.PreparedFilename(info)}
}

// outputList collects the final file paths yt-dlp prints, deduplicated
// so a retried attempt does not hand the same file over twice.
type outputList struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	paths []string
}

func (o *outputList) add(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = make(map[string]struct{})
	}
	if _, dup := o.seen[path]; dup {
		return
	}
	o.seen[path] = struct{}{}
	o.paths = append(o.paths, path)
}

func (o *outputList) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.paths...)
}
