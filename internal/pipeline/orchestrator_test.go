package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedDownloader fails or succeeds per URL and can emit progress
// events through the sink it was built with.
type scriptedDownloader struct {
	errs     map[string]error
	progress event.ProgressSink
	emit     bool

	mu   sync.Mutex
	urls []string
}

func (s *scriptedDownloader) Download(_ context.Context, url string) error {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	if err, ok := s.errs[url]; ok && err != nil {
		return err
	}
	if s.emit {
		s.progress.OnDownloadProgress(event.ProgressEvent{Phase: event.PhaseDownload, ProgressFraction: 0.5})
		s.progress.OnProcessProgress(event.ProgressEvent{Phase: event.PhaseProcess, ProgressFraction: 0.5})
	}
	return nil
}

type statusRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (s *statusRecorder) OnStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func newTestOrchestrator(errs map[string]error, store *history.Store) (*Orchestrator, *scriptedDownloader, *statusRecorder, *event.CancelToken) {
	dl := &scriptedDownloader{errs: errs}
	status := &statusRecorder{}
	token := event.NewCancelToken()
	factory := func(progress event.ProgressSink, _ event.StatusSink) Downloader {
		dl.progress = progress
		return dl
	}
	o := NewOrchestrator(factory, event.NopProgressSink{}, status, token, store, testLogger())
	return o, dl, status, token
}

func batchConfig(main string, queue ...string) *config.DownloadConfig {
	return &config.DownloadConfig{
		URL:        main,
		Queue:      queue,
		DestDir:    "/videos",
		VideoCodec: config.VcodecNLE,
		AudioCodec: config.AcodecAuto,
	}
}

func TestOrchestratorEmptyConfigIsNoOp(t *testing.T) {
	o, dl, status, _ := newTestOrchestrator(nil, nil)

	res := o.Run(context.Background(), batchConfig(""))
	assert.Empty(t, res.Jobs)
	assert.Empty(t, res.RemainingQueue)
	assert.Empty(t, dl.urls)
	assert.Empty(t, status.messages)
}

func TestOrchestratorSingleSuccess(t *testing.T) {
	o, dl, status, _ := newTestOrchestrator(nil, nil)
	dl.emit = true

	res := o.Run(context.Background(), batchConfig("https://example.com/v/1"))
	require.Len(t, res.Jobs, 1)
	job := res.Jobs[0]
	assert.Equal(t, JobStateCompleted, job.State())
	assert.Equal(t, "Download finished", job.Message())
	assert.Len(t, job.ID, 26)
	assert.Nil(t, job.Report())

	// No counter prefix for a single URL; preparation is announced before
	// the downloader takes over.
	require.Len(t, status.messages, 2)
	assert.Equal(t, "Preparing...", status.messages[0])
	assert.Equal(t, "Download finished: /videos", status.messages[1])
}

func TestOrchestratorBatchContinuesPastFailures(t *testing.T) {
	errs := map[string]error{
		"https://example.com/v/2": report.ErrPlaylistNotFound,
	}
	o, dl, status, _ := newTestOrchestrator(errs, nil)

	cfg := batchConfig("https://example.com/v/1", "https://example.com/v/2", "https://example.com/v/3")
	res := o.Run(context.Background(), cfg)

	require.Len(t, res.Jobs, 3)
	assert.Equal(t, JobStateCompleted, res.Jobs[0].State())
	assert.Equal(t, JobStateFailed, res.Jobs[1].State())
	assert.Equal(t, JobStateCompleted, res.Jobs[2].State())
	assert.Equal(t, []string{"https://example.com/v/1", "https://example.com/v/2", "https://example.com/v/3"}, dl.urls)

	// Completed queue entries leave; the failed one stays for a retry.
	assert.Equal(t, []string{"https://example.com/v/2"}, res.RemainingQueue)

	// Counter prefixes on every status line of a multi-URL batch.
	require.Len(t, status.messages, 6)
	assert.Equal(t, "(1/3) Preparing...", status.messages[0])
	assert.Equal(t, "(1/3) Download finished: /videos", status.messages[1])
	assert.Equal(t, "(2/3) Preparing...", status.messages[2])
	assert.Equal(t, "(2/3) Playlist not found. Check the URL or disable playlist mode.", status.messages[3])
	assert.Equal(t, "(3/3) Preparing...", status.messages[4])
	assert.Equal(t, "(3/3) Download finished: /videos", status.messages[5])
}

func TestOrchestratorCancelStopsBatch(t *testing.T) {
	errs := map[string]error{
		"https://example.com/v/2": report.ErrCancelled,
	}
	o, dl, _, _ := newTestOrchestrator(errs, nil)

	cfg := batchConfig("https://example.com/v/1", "https://example.com/v/2", "https://example.com/v/3")
	res := o.Run(context.Background(), cfg)

	require.Len(t, res.Jobs, 2)
	assert.Equal(t, JobStateCompleted, res.Jobs[0].State())
	assert.Equal(t, JobStateCancelled, res.Jobs[1].State())
	assert.Equal(t, []string{"https://example.com/v/1", "https://example.com/v/2"}, dl.urls)

	// The cancelled entry and everything after it stay queued.
	assert.Equal(t, []string{"https://example.com/v/2", "https://example.com/v/3"}, res.RemainingQueue)
}

func TestOrchestratorCancelBeforeBatch(t *testing.T) {
	o, dl, _, token := newTestOrchestrator(nil, nil)
	token.Cancel()

	res := o.Run(context.Background(), batchConfig("https://example.com/v/1"))
	assert.Empty(t, res.Jobs)
	assert.Empty(t, dl.urls)
}

func TestOrchestratorJobPhaseTracking(t *testing.T) {
	o, dl, _, _ := newTestOrchestrator(nil, nil)
	dl.emit = true

	res := o.Run(context.Background(), batchConfig("https://example.com/v/1"))
	require.Len(t, res.Jobs, 1)
	// Terminal state wins over the phases seen mid-run.
	assert.Equal(t, JobStateCompleted, res.Jobs[0].State())
}

func TestOrchestratorWritesHistory(t *testing.T) {
	store, err := history.Open(":memory:", testLogger())
	require.NoError(t, err)
	defer store.Close()

	errs := map[string]error{
		"https://example.com/v/2": report.ErrNoValidEncoder,
	}
	o, _, _, _ := newTestOrchestrator(errs, store)

	cfg := batchConfig("https://example.com/v/1", "https://example.com/v/2")
	o.Run(context.Background(), cfg)

	recs, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byURL := map[string]history.Record{}
	for _, r := range recs {
		byURL[r.URL] = r
	}
	ok := byURL["https://example.com/v/1"]
	assert.Equal(t, history.StateCompleted, ok.State)
	assert.Equal(t, "Download finished", ok.Message)
	assert.Equal(t, "/videos", ok.OutputPath)

	bad := byURL["https://example.com/v/2"]
	assert.Equal(t, history.StateFailed, bad.State)
	assert.Equal(t, "No capable encoder found", bad.Message)
	assert.Empty(t, bad.OutputPath)
}
