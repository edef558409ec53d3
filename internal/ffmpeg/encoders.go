// Package ffmpeg drives the probe, encoder selection and remux/re-encode
// half of the pipeline through external ffmpeg/ffprobe binaries.
package ffmpeg

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

// Target is a transcode target codec family.
type Target string

// Transcode targets.
const (
	TargetX264   Target = "x264"
	TargetX265   Target = "x265"
	TargetProRes Target = "ProRes"
	TargetAV1    Target = "AV1"
)

// encoderEntry binds a platform family to its encoder for one target. A
// blank Name marks the family as unable to produce the target and the
// selector skips it.
type encoderEntry struct {
	Family  string
	Name    string
	Quality []string
}

var nvencQuality = []string{
	"-preset:v", "p7",
	"-tune:v", "hq",
	"-rc:v", "vbr",
	"-cq:v", "19",
	"-b:v", "0",
	"-profile:v", "high",
}

// proresQuality is also the fallback block injected for ProRes outputs that
// skip the big-dimension quality path.
var proresQuality = []string{"-profile:v", "0", "-qscale:v", "4"}

// encoderRegistry lists encoder candidates per target in selection priority
// order. The CPU entry is always present and always last so selection can
// never come up empty on a stock ffmpeg build.
var encoderRegistry = map[Target][]encoderEntry{
	TargetX264: {
		{Family: "QuickSync", Name: "h264_qsv", Quality: []string{"-global_quality", "20", "-look_ahead", "1"}},
		{Family: "NVENC", Name: "h264_nvenc", Quality: nvencQuality},
		{Family: "AMF", Name: "h264_amf", Quality: []string{"-quality", "quality"}},
		{Family: "Apple", Name: "h264_videotoolbox", Quality: []string{"-q:v", "35"}},
		{Family: "Raspberry", Name: "h264_v4l2m2m"},
		{Family: "MediaCodec", Name: "h264_mediacodec", Quality: []string{"-b:v", "8M"}},
		{Family: "CPU", Name: "libx264", Quality: []string{"-crf", "20"}},
	},
	TargetX265: {
		{Family: "QuickSync", Name: "hevc_qsv", Quality: []string{"-global_quality", "20", "-look_ahead", "1"}},
		{Family: "NVENC", Name: "hevc_nvenc", Quality: nvencQuality},
		{Family: "AMF", Name: "hevc_amf", Quality: []string{"-quality", "quality"}},
		{Family: "Apple", Name: "hevc_videotoolbox", Quality: []string{"-q:v", "35"}},
		{Family: "Raspberry", Name: "hevc_v4l2m2m"},
		{Family: "MediaCodec", Name: "hevc_mediacodec", Quality: []string{"-b:v", "6M"}},
		{Family: "CPU", Name: "libx265", Quality: []string{"-crf", "20"}},
	},
	TargetProRes: {
		{Family: "QuickSync"},
		{Family: "NVENC"},
		{Family: "AMF"},
		{Family: "Apple", Name: "prores_videotoolbox", Quality: proresQuality},
		{Family: "Raspberry"},
		{Family: "MediaCodec"},
		{Family: "CPU", Name: "prores_ks", Quality: proresQuality},
	},
	TargetAV1: {
		{Family: "QuickSync", Name: "av1_qsv"},
		{Family: "NVENC", Name: "av1_nvenc"},
		{Family: "AMF"},
		{Family: "Apple"},
		{Family: "MediaCodec"},
		{Family: "CPU", Name: "libsvtav1", Quality: []string{"-crf", "23"}},
	},
}

// Selector picks the fastest available encoder for a target codec by
// interrogating the ffmpeg build once per process.
type Selector struct {
	runner     toolrunner.Runner
	ffmpegPath string
	logger     *slog.Logger

	available atomic.Pointer[map[string]struct{}]
}

// NewSelector returns a selector bound to the given ffmpeg binary.
func NewSelector(runner toolrunner.Runner, cfg config.ToolsConfig, logger *slog.Logger) *Selector {
	return &Selector{
		runner:     runner,
		ffmpegPath: cfg.FFmpeg,
		logger:     logger,
	}
}

// AvailableEncoders returns the set of encoder names the ffmpeg build
// supports. The set is computed once and cached for the process lifetime;
// a concurrent double-init just races to publish the same value. On failure
// the set is empty and selection falls through to CPU entries.
func (s *Selector) AvailableEncoders(ctx context.Context) map[string]struct{} {
	if cached := s.available.Load(); cached != nil {
		return *cached
	}

	set := make(map[string]struct{})
	res, err := s.runner.Run(ctx, []string{s.ffmpegPath, "-encoders", "-hide_banner"}, 10*time.Second)
	if err != nil || res.ReturnCode != 0 {
		s.logger.Warn("could not query ffmpeg encoders",
			slog.String("ffmpeg", s.ffmpegPath),
			slog.Any("error", err),
			slog.Int("return_code", res.ReturnCode))
	} else {
		for _, line := range strings.Split(res.Stdout, "\n") {
			// Format: " V....D h264_nvenc  NVIDIA NVENC ..." with a
			// six character capability token before the encoder name.
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) >= 2 && len(fields[0]) == 6 {
				set[fields[1]] = struct{}{}
			}
		}
	}

	s.available.CompareAndSwap(nil, &set)
	cached := s.available.Load()
	s.logger.Info("available encoders", slog.Int("count", len(*cached)))
	return *cached
}

// FastestEncoder returns the highest-priority encoder available for the
// target codec together with its quality flags. Hardware families are tried
// in registry order; CPU is the universal fallback.
func (s *Selector) FastestEncoder(ctx context.Context, target Target) (string, []string, error) {
	available := s.AvailableEncoders(ctx)
	for _, entry := range encoderRegistry[target] {
		if entry.Name == "" {
			continue
		}
		if _, ok := available[entry.Name]; ok {
			s.logger.Info("selected encoder",
				slog.String("encoder", entry.Name),
				slog.String("family", entry.Family),
				slog.String("target", string(target)))
			return entry.Name, entry.Quality, nil
		}
	}
	return "", nil, report.ErrNoValidEncoder
}

// AdaptCRF rescales a -crf value in flags for the output height: above
// 1080p the factor drops by 2 (floor 15) to preserve detail, at or below
// 720p it rises by 3 (cap 30) since artifacts are less visible. Flags
// without -crf pass through untouched.
func AdaptCRF(flags []string, height int) []string {
	for i, f := range flags {
		if f != "-crf" || i+1 >= len(flags) {
			continue
		}
		n, err := strconv.Atoi(flags[i+1])
		if err != nil {
			return flags
		}
		switch {
		case height > 1080:
			n = max(n-2, 15)
		case height <= 720:
			n = min(n+3, 30)
		default:
			return flags
		}
		adapted := append([]string(nil), flags...)
		adapted[i+1] = strconv.Itoa(n)
		return adapted
	}
	return flags
}
