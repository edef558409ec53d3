package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

// MediaInfo is the subset of ffprobe output the decision table consumes.
type MediaInfo struct {
	VideoCodec string
	AudioCodec string
	Width      int
	Height     int

	// DurationSeconds is the container duration, truncated to whole seconds.
	DurationSeconds int

	// BigDimension is true when min(width, height) exceeds 1080.
	BigDimension bool
}

// Prober extracts stream metadata from downloaded files via ffprobe.
type Prober struct {
	runner toolrunner.Runner
	cfg    config.ToolsConfig
	logger *slog.Logger
}

// NewProber returns a prober bound to the configured ffprobe binary.
func NewProber(runner toolrunner.Runner, cfg config.ToolsConfig, logger *slog.Logger) *Prober {
	return &Prober{runner: runner, cfg: cfg, logger: logger}
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe on path and reduces the JSON output to a MediaInfo.
// Any failure is wrapped in a report.ProbeError, which is fatal to the job.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	argv := []string{p.cfg.FFprobe, "-show_format", "-show_streams", "-of", "json", path}
	res, err := p.runner.Run(ctx, argv, p.cfg.ProbeTimeout)
	if err != nil {
		return MediaInfo{}, &report.ProbeError{Path: path, Stderr: res.Stderr, Err: err}
	}
	if res.ReturnCode != 0 {
		return MediaInfo{}, &report.ProbeError{
			Path:   path,
			Stderr: res.Stderr,
			Err:    fmt.Errorf("ffprobe exited with code %d", res.ReturnCode),
		}
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return MediaInfo{}, &report.ProbeError{Path: path, Stderr: res.Stderr, Err: err}
	}

	info := MediaInfo{VideoCodec: "na", AudioCodec: "na"}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			info.AudioCodec = s.CodecName
		case "video":
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.BigDimension = min(s.Width, s.Height) > 1080
		}
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.DurationSeconds = int(d)
	}

	p.logger.Debug("probed file",
		slog.String("path", path),
		slog.String("vcodec", info.VideoCodec),
		slog.String("acodec", info.AudioCodec),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Int("duration_s", info.DurationSeconds))
	return info, nil
}
