package ytdlp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

func testDownloadConfig() *config.DownloadConfig {
	return &config.DownloadConfig{
		DestDir:      "/videos",
		VideoCodec:   config.VcodecNLE,
		AudioCodec:   config.AcodecAuto,
		MaxHeight:    "1080p",
		MaxFramerate: "60",
	}
}

func newTestSession(runner toolrunner.Runner) *Session {
	tools := config.ToolsConfig{YtDlp: "yt-dlp", FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
	return NewSession(runner, tools, testDownloadConfig(), testLogger())
}

func TestPeekSingleVideo(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{Stdout: `{
		"id": "abc", "title": "A Clip", "uploader": "Someone", "ext": "webm",
		"filesize_approx": 1000,
		"requested_formats": [{"filesize": 700}, {"filesize_approx": 300}]
	}`}
	s := newTestSession(runner)

	peek, err := s.Peek(context.Background(), "https://example.com/v/abc")
	require.NoError(t, err)
	require.NotNil(t, peek.Info)
	assert.Equal(t, "A Clip", peek.Info.Title)
	assert.Equal(t, int64(1000), peek.TotalSize)
	assert.Equal(t, filepath.Join("/videos", "A Clip - Someone.webm"), peek.Filename)

	require.Len(t, runner.Calls, 1)
	argv := runner.Calls[0]
	assert.Equal(t, "yt-dlp", argv[0])
	assert.Contains(t, argv, "--dump-single-json")
	assert.Equal(t, "https://example.com/v/abc", argv[len(argv)-1])
}

func TestPeekRequestedFormatsFallback(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{Stdout: `{
		"title": "T", "uploader": "U", "ext": "mp4",
		"requested_formats": [{"filesize": 700}, {"filesize_approx": 300}]
	}`}
	s := newTestSession(runner)

	peek, err := s.Peek(context.Background(), "https://example.com/v/x")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), peek.TotalSize)
}

func TestPeekPlaylistSumsEntries(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{Stdout: `{
		"_type": "playlist", "title": "List", "uploader": "U", "ext": "",
		"entries": [
			{"title": "One", "uploader": "U", "ext": "mp4", "filesize": 100},
			null,
			{"title": "Two", "uploader": "U", "ext": "mp4", "filesize_approx": 50}
		]
	}`}
	s := newTestSession(runner)

	peek, err := s.Peek(context.Background(), "https://example.com/list")
	require.NoError(t, err)
	assert.Equal(t, int64(150), peek.TotalSize)
	require.Len(t, peek.Info.Entries, 3)
	assert.Nil(t, peek.Info.Entries[1])
}

func TestPeekNull(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{Stdout: "null\n"}
	s := newTestSession(runner)

	peek, err := s.Peek(context.Background(), "https://example.com/gone")
	require.NoError(t, err)
	assert.Nil(t, peek.Info)
}

func TestPeekUsesExtractionDeadline(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{Stdout: "null"}
	tools := config.ToolsConfig{YtDlp: "yt-dlp", StallTimeout: 90 * time.Second}
	s := NewSession(runner, tools, testDownloadConfig(), testLogger())

	_, err := s.Peek(context.Background(), "https://example.com/v/x")
	require.NoError(t, err)
	// The info pass is bounded by the stall timeout so a hung extractor
	// cannot wedge the pipeline.
	require.Len(t, runner.RunTimeouts, 1)
	assert.Equal(t, 90*time.Second, runner.RunTimeouts[0])
}

func TestPeekExtractorError(t *testing.T) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["yt-dlp"] = toolrunner.Result{
		ReturnCode: 1,
		Stderr:     "[youtube] x: Downloading webpage\nERROR: Video unavailable\n",
	}
	s := newTestSession(runner)

	_, err := s.Peek(context.Background(), "https://example.com/v/x")
	require.Error(t, err)
	assert.Equal(t, "ERROR: Video unavailable", err.Error())
}

func TestPreparedFilenameTruncation(t *testing.T) {
	s := newTestSession(toolrunner.NewFakeRunner())

	longTitle := strings.Repeat("a", 150)
	info := &Info{Title: longTitle, Uploader: "Someone", Ext: "mp4"}
	path := s.PreparedFilename(info)
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, strings.Repeat("a", 100)+" - Someone"), base)
	assert.False(t, strings.Contains(base, strings.Repeat("a", 101)))

	longUploader := strings.Repeat("u", 300)
	info = &Info{Title: "T", Uploader: longUploader, Ext: "mp4"}
	base = filepath.Base(s.PreparedFilename(info))
	stem := strings.TrimSuffix(base, ".mp4")
	assert.LessOrEqual(t, len([]rune(stem)), 250)
}

func TestPreparedFilenameSanitizesFields(t *testing.T) {
	s := newTestSession(toolrunner.NewFakeRunner())

	info := &Info{Title: "AC/DC: Back in Black (Official)", Uploader: "AC/DC", Ext: "mp4"}
	assert.Equal(t,
		filepath.Join("/videos", "AC⧸DC： Back in Black (Official) - AC⧸DC.mp4"),
		s.PreparedFilename(info))

	// Missing fields render as NA, like the output template does.
	info = &Info{Title: "Clip", Ext: "mp4"}
	assert.Equal(t, filepath.Join("/videos", "Clip - NA.mp4"), s.PreparedFilename(info))
}

func TestDownloadArgvIncludesProgressTemplate(t *testing.T) {
	s := newTestSession(toolrunner.NewFakeRunner())
	argv := s.downloadArgv("https://example.com/v/1")
	assert.Contains(t, argv, "--newline")
	assert.Contains(t, argv, "--progress-template")
	assert.Contains(t, argv, "--format")
	assert.Contains(t, argv, "--print")
	assert.Contains(t, argv, "after_move:FETCHARR-OUT %(filepath)s")
	assert.Contains(t, argv, "--no-simulate")
	assert.Contains(t, argv, "--no-quiet")
	assert.Equal(t, "https://example.com/v/1", argv[len(argv)-1])
}

func TestParseOutputLine(t *testing.T) {
	path, ok := parseOutputLine("FETCHARR-OUT /videos/A Clip - Someone.mp4")
	require.True(t, ok)
	assert.Equal(t, "/videos/A Clip - Someone.mp4", path)

	_, ok = parseOutputLine("[youtube] abc: Downloading webpage")
	assert.False(t, ok)
	_, ok = parseOutputLine("FETCHARR-OUT ")
	assert.False(t, ok)
	_, ok = parseOutputLine("FETCHARR-OUT")
	assert.False(t, ok)
}

func TestDownloadErrorFallback(t *testing.T) {
	err := downloadError(2, "some noise\nmore noise")
	assert.Contains(t, err.Error(), "exited with code 2")
}
