package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "yt-dlp", cfg.Tools.YtDlp)
	assert.Equal(t, "ffmpeg", cfg.Tools.FFmpeg)
	assert.Equal(t, "ffprobe", cfg.Tools.FFprobe)
	assert.Equal(t, 120*time.Second, cfg.Tools.StallTimeout)
	assert.Equal(t, 3, cfg.Tools.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Tools.BaseBackoff)
	assert.Equal(t, VcodecBest, cfg.Download.VideoCodec)
	assert.Equal(t, AcodecAuto, cfg.Download.AudioCodec)
	assert.True(t, cfg.History.Enabled)
}

func TestLoadFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fetcharr.toml")
	content := `
[logging]
level = "debug"
format = "json"

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[download]
dest_dir = "/videos"
video_codec = "NLE"
max_height = "2160p"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Tools.FFmpeg)
	assert.Equal(t, "/videos", cfg.Download.DestDir)
	assert.Equal(t, VcodecNLE, cfg.Download.VideoCodec)
	assert.Equal(t, "2160", cfg.Download.Height())
	// Untouched keys keep their defaults.
	assert.Equal(t, "yt-dlp", cfg.Tools.YtDlp)
}

func TestValidateRejectsBadValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	cfg.Logging.Level = "chatty"
	assert.Error(t, cfg.Validate())

	cfg.Logging.Level = "info"
	cfg.Tools.MaxRetries = 0
	assert.Error(t, cfg.Validate())

	cfg.Tools.MaxRetries = 3
	cfg.Tools.StallTimeout = 0
	assert.Error(t, cfg.Validate())
}
