package ffmpeg

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testToolsConfig() config.ToolsConfig {
	return config.ToolsConfig{
		YtDlp:   "yt-dlp",
		FFmpeg:  "ffmpeg",
		FFprobe: "ffprobe",
	}
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 V....D prores_ks            Apple ProRes (iCodec Pro) (codec prores)
 A....D aac                  AAC (Advanced Audio Coding)
`

func newTestSelector(stdout string) (*Selector, *toolrunner.FakeRunner) {
	runner := toolrunner.NewFakeRunner()
	runner.RunResults["ffmpeg"] = toolrunner.Result{Stdout: stdout}
	return NewSelector(runner, testToolsConfig(), testLogger()), runner
}

func TestAvailableEncodersParsing(t *testing.T) {
	sel, _ := newTestSelector(encodersOutput)
	available := sel.AvailableEncoders(context.Background())

	assert.Contains(t, available, "h264_nvenc")
	assert.Contains(t, available, "libx264")
	assert.Contains(t, available, "aac")
	// Legend lines have a 6-char token but no second field worth keeping;
	// "=" ends up as the name and must not collide with real encoders.
	assert.NotContains(t, available, "Video")
}

func TestAvailableEncodersCached(t *testing.T) {
	sel, runner := newTestSelector(encodersOutput)
	sel.AvailableEncoders(context.Background())
	sel.AvailableEncoders(context.Background())
	assert.Equal(t, 1, runner.CallCount("ffmpeg"))
}

func TestFastestEncoderPrefersHardware(t *testing.T) {
	sel, _ := newTestSelector(encodersOutput)
	name, quality, err := sel.FastestEncoder(context.Background(), TargetX264)
	require.NoError(t, err)
	assert.Equal(t, "h264_nvenc", name)
	assert.Contains(t, quality, "-cq:v")
}

func TestFastestEncoderFallsBackToCPU(t *testing.T) {
	out := " V....D libx265              libx265 H.265 / HEVC (codec hevc)\n"
	sel, _ := newTestSelector(out)
	name, quality, err := sel.FastestEncoder(context.Background(), TargetX265)
	require.NoError(t, err)
	assert.Equal(t, "libx265", name)
	assert.Equal(t, []string{"-crf", "20"}, quality)
}

func TestFastestEncoderNoneAvailable(t *testing.T) {
	sel, _ := newTestSelector("")
	_, _, err := sel.FastestEncoder(context.Background(), TargetProRes)
	assert.ErrorIs(t, err, report.ErrNoValidEncoder)
}

func TestRegistryCPUAlwaysPresent(t *testing.T) {
	for target, entries := range encoderRegistry {
		last := entries[len(entries)-1]
		assert.Equal(t, "CPU", last.Family, "target %s", target)
		assert.NotEmpty(t, last.Name, "target %s", target)
	}
}

func TestAdaptCRF(t *testing.T) {
	tests := []struct {
		name   string
		flags  []string
		height int
		want   []string
	}{
		{"empty stays empty", []string{}, 2160, []string{}},
		{"lowered above 1080", []string{"-crf", "20"}, 2160, []string{"-crf", "18"}},
		{"floor at 15", []string{"-crf", "16"}, 2160, []string{"-crf", "15"}},
		{"raised at 720", []string{"-crf", "20"}, 720, []string{"-crf", "23"}},
		{"cap at 30", []string{"-crf", "28"}, 480, []string{"-crf", "30"}},
		{"unchanged between 720 and 1080", []string{"-crf", "20"}, 1080, []string{"-crf", "20"}},
		{"no crf passes through", []string{"-cq:v", "19"}, 2160, []string{"-cq:v", "19"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptCRF(tt.flags, tt.height))
		})
	}
}

func TestAdaptCRFDoesNotMutateInput(t *testing.T) {
	flags := []string{"-crf", "20"}
	AdaptCRF(flags, 2160)
	assert.Equal(t, []string{"-crf", "20"}, flags)
}
