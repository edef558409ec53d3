package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

// Info is the subset of yt-dlp's info JSON the pipeline consumes. A
// playlist carries Entries; failed playlist entries come back as null.
type Info struct {
	Type           string   `json:"_type"`
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Uploader       string   `json:"uploader"`
	Ext            string   `json:"ext"`
	Duration       float64  `json:"duration"`
	Filesize       int64    `json:"filesize"`
	FilesizeApprox int64    `json:"filesize_approx"`
	Formats        []Format `json:"formats"`

	RequestedFormats []requestedFormat `json:"requested_formats"`
	Entries          []*Info           `json:"entries"`
}

type requestedFormat struct {
	Filesize       int64 `json:"filesize"`
	FilesizeApprox int64 `json:"filesize_approx"`
}

// PeekResult is the outcome of an extraction pass without download.
type PeekResult struct {
	Info *Info
	// TotalSize is the expected download size in bytes, 0 when unknown.
	TotalSize int64
	// Filename is the path the download will land at.
	Filename string
}

// Session holds the option set for one batch of URLs. Options are built
// once and reused so every URL in the batch downloads identically.
type Session struct {
	runner toolrunner.Runner
	tools  config.ToolsConfig
	cfg    *config.DownloadConfig
	logger *slog.Logger

	opts     OptionMap
	baseArgs []string
}

// NewSession builds the yt-dlp option set from the download config.
func NewSession(runner toolrunner.Runner, tools config.ToolsConfig, cfg *config.DownloadConfig, logger *slog.Logger) *Session {
	opts := BuildOptions(cfg, tools)
	return &Session{
		runner:   runner,
		tools:    tools,
		cfg:      cfg,
		logger:   logger,
		opts:     opts,
		baseArgs: Lower(opts),
	}
}

// Options exposes the merged option map, mainly for logging and tests.
func (s *Session) Options() OptionMap { return s.opts }

// Peek extracts info for url without downloading. A nil Info with nil
// error means the extractor found nothing there.
func (s *Session) Peek(ctx context.Context, url string) (*PeekResult, error) {
	argv := []string{s.tools.YtDlp, "--dump-single-json", "--no-warnings"}
	argv = append(argv, s.baseArgs...)
	argv = append(argv, url)

	res, err := s.runner.Run(ctx, argv, s.tools.StallTimeout)
	if err != nil {
		return nil, fmt.Errorf("extracting info for %s: %w", url, err)
	}
	if res.ReturnCode != 0 {
		return nil, downloadError(res.ReturnCode, res.Stderr)
	}

	stdout := strings.TrimSpace(res.Stdout)
	if stdout == "" || stdout == "null" {
		return &PeekResult{}, nil
	}
	var info Info
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return nil, fmt.Errorf("parsing info for %s: %w", url, err)
	}
	return &PeekResult{
		Info:      &info,
		TotalSize: expectedSize(&info),
		Filename:  s.PreparedFilename(&info),
	}, nil
}

// fieldSanitizer mirrors yt-dlp's default filename sanitization: path
// separators and Windows-reserved characters become fullwidth lookalikes.
var fieldSanitizer = strings.NewReplacer(
	"/", "⧸",
	"\\", "⧹",
	":", "：",
	"\"", "＂",
	"|", "｜",
	"?", "？",
	"*", "＊",
	"<", "＜",
	">", "＞",
)

// PreparedFilename computes the output path for info the way the output
// template renders it: title capped at 100 characters, " - <uploader>",
// stem capped at 250, then the media extension. Fields are sanitized and
// missing ones render as "NA", matching yt-dlp. The driver prefers the
// paths yt-dlp prints itself; this is the estimate for Peek and the
// fallback for builds without the print hook.
func (s *Session) PreparedFilename(info *Info) string {
	title := info.Title
	if title == "" {
		title = "NA"
	}
	uploader := info.Uploader
	if uploader == "" {
		uploader = "NA"
	}
	stem := fieldSanitizer.Replace(truncateRunes(title, 100)) + " - " + fieldSanitizer.Replace(uploader)
	stem = truncateRunes(stem, fileStemLimit)
	return filepath.Join(s.cfg.DestDir, stem+"."+info.Ext)
}

// outputMarker prefixes the final file path yt-dlp prints after each
// completed download.
const outputMarker = "FETCHARR-OUT"

// downloadArgv is the argv for the actual download of url. The print hook
// implies quiet and simulate; both are undone so the download still runs
// and the log bridge keeps seeing extractor output.
func (s *Session) downloadArgv(url string) []string {
	argv := []string{
		s.tools.YtDlp,
		"--newline", "--progress", "--progress-template", progressTemplate,
		"--print", "after_move:" + outputMarker + " %(filepath)s",
		"--no-simulate", "--no-quiet",
	}
	argv = append(argv, s.baseArgs...)
	return append(argv, url)
}

// parseOutputLine decodes a printed output path line. The bool is false
// for any other output.
func parseOutputLine(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), outputMarker+" ")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func expectedSize(info *Info) int64 {
	if info.Type == "playlist" {
		var total int64
		for _, entry := range info.Entries {
			if entry == nil {
				continue
			}
			total += firstNonZero(entry.Filesize, entry.FilesizeApprox)
		}
		return total
	}
	if size := firstNonZero(info.Filesize, info.FilesizeApprox); size > 0 {
		return size
	}
	var total int64
	for _, f := range info.RequestedFormats {
		total += firstNonZero(f.Filesize, f.FilesizeApprox)
	}
	return total
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// downloadError turns a nonzero yt-dlp exit into an error carrying the
// extractor's own message when one is present.
func downloadError(code int, stderr string) error {
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return fmt.Errorf("%s", line)
		}
	}
	return fmt.Errorf("yt-dlp exited with code %d", code)
}
