package ytdlp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
)

func TestFileOpts(t *testing.T) {
	opts := FileOpts(false, "/videos", false, "", "ffmpeg")
	assert.Equal(t, true, opts["noplaylist"])
	assert.Equal(t, false, opts["ignoreerrors"])
	assert.Equal(t, true, opts["overwrites"])
	assert.Equal(t, 250, opts["trim_file_name"])
	assert.Equal(t, filepath.Join("/videos", "%(title).100s - %(uploader)s.%(ext)s"), opts["outtmpl"])
	assert.NotContains(t, opts, "playlist_items")
	// Default ffmpeg on PATH needs no explicit location.
	assert.NotContains(t, opts, "ffmpeg_location")
}

func TestFileOptsPlaylist(t *testing.T) {
	opts := FileOpts(true, ".", true, "2,4-6", "/opt/ffmpeg/bin/ffmpeg")
	assert.Equal(t, false, opts["noplaylist"])
	assert.Equal(t, "only_download", opts["ignoreerrors"])
	assert.Equal(t, "2,4-6", opts["playlist_items"])
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", opts["ffmpeg_location"])
}

func TestFileOptsIndicesDefault(t *testing.T) {
	opts := FileOpts(true, ".", true, "", "ffmpeg")
	assert.Equal(t, "1", opts["playlist_items"])
}

func TestAVOptsVideo(t *testing.T) {
	opts := AVOpts(false, config.AcodecAuto, "1080p", "60")
	assert.Equal(t,
		"((bv[vcodec~='avc1|h264'][height=1080]/bv[height=1080]/bv)+(ba[acodec~='aac|mp3|mp4a']/ba))/b",
		opts["format"])
	assert.Equal(t, []string{"res:1080", "fps:60"}, opts["format_sort"])
	assert.Equal(t, "mp4", opts["merge_output_format"])
	assert.NotContains(t, opts, "extract_audio")
}

func TestAVOptsAudioAuto(t *testing.T) {
	opts := AVOpts(true, config.AcodecAuto, "1080p", "60")
	assert.Equal(t, "ba/ba*", opts["format"])
	assert.Equal(t, true, opts["extract_audio"])
	pps := opts["postprocessors"].([]PostProcessor)
	require.Len(t, pps, 1)
	assert.Equal(t, "FFmpegExtractAudio", pps[0].Key)
	assert.Empty(t, pps[0].PreferredCodec)
}

func TestAVOptsAudioSpecificCodec(t *testing.T) {
	opts := AVOpts(true, config.AcodecMP3, "1080p", "60")
	assert.Equal(t, "ba[acodec*=mp3]/ba/ba*", opts["format"])
	pps := opts["postprocessors"].([]PostProcessor)
	require.Len(t, pps, 1)
	assert.Equal(t, "mp3", pps[0].PreferredCodec)
}

func TestOriginalOpts(t *testing.T) {
	tests := []struct {
		name      string
		videoID   string
		audioID   string
		audioOnly bool
		want      string
	}{
		{"both ids", "137", "140", false, "137+140"},
		{"video only", "137", "", false, "137+ba"},
		{"audio only id", "", "140", false, "bv+140"},
		{"no ids", "", "", false, "bv+ba/b"},
		{"audio-only with id", "137", "140", true, "140"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := OriginalOpts(tt.videoID, tt.audioID, tt.audioOnly)
			assert.Equal(t, tt.want, opts["format"])
			assert.Equal(t, "mp4", opts["merge_output_format"])
		})
	}
}

func TestTrimOpts(t *testing.T) {
	assert.Empty(t, TrimOpts(nil, nil, "ffmpeg"))

	end := config.Timecode{Minutes: 2, Seconds: 30}
	opts := TrimOpts(nil, &end, "ffmpeg")
	assert.Equal(t, "ffmpeg", opts["external_downloader"])
	args := opts["external_downloader_args"].(OptionMap)["ffmpeg_i"].([]string)
	assert.Equal(t, []string{"-ss", "00:00:00", "-to", "00:02:30"}, args)

	start := config.Timecode{Seconds: 10}
	opts = TrimOpts(&start, nil, "ffmpeg")
	args = opts["external_downloader_args"].(OptionMap)["ffmpeg_i"].([]string)
	assert.Equal(t, []string{"-ss", "00:00:10"}, args)
}

func TestCookiesOpts(t *testing.T) {
	assert.Empty(t, CookiesOpts(""))
	opts := CookiesOpts("Firefox")
	assert.Equal(t, []string{"firefox"}, opts["cookiesfrombrowser"])
}

func TestSubtitlesOpts(t *testing.T) {
	assert.Empty(t, SubtitlesOpts(false))
	opts := SubtitlesOpts(true)
	assert.Equal(t, []string{"all"}, opts["subtitleslangs"])
	assert.Equal(t, true, opts["writesubtitles"])
}

func TestSponsorBlockOpts(t *testing.T) {
	assert.Empty(t, SponsorBlockOpts(false, SponsorBlockCategories))
	opts := SponsorBlockOpts(true, SponsorBlockCategories)
	pps := opts["postprocessors"].([]PostProcessor)
	require.Len(t, pps, 2)
	assert.Equal(t, "SponsorBlock", pps[0].Key)
	assert.Equal(t, "pre_process", pps[0].When)
	assert.Equal(t, "ModifyChapters", pps[1].Key)
	assert.Equal(t, SponsorBlockCategories, pps[1].Categories)
}

func TestMergeDisjointKeysOrderIndependent(t *testing.T) {
	a := OptionMap{"format": "ba/ba*"}
	b := OptionMap{"subtitleslangs": []string{"all"}}
	assert.Equal(t, Merge(a, b), Merge(b, a))
}

func TestMergeAccumulatesPostProcessors(t *testing.T) {
	a := OptionMap{"postprocessors": []PostProcessor{{Key: "FFmpegExtractAudio"}}}
	b := OptionMap{"postprocessors": []PostProcessor{{Key: "SponsorBlock"}, {Key: "ModifyChapters"}}}
	merged := Merge(a, b)
	pps := merged["postprocessors"].([]PostProcessor)
	require.Len(t, pps, 3)
	assert.Equal(t, "FFmpegExtractAudio", pps[0].Key)
	assert.Equal(t, "ModifyChapters", pps[2].Key)
}

func TestBuildOptionsOriginalModeWins(t *testing.T) {
	cfg := &config.DownloadConfig{
		DestDir:         ".",
		VideoCodec:      config.VcodecOriginal,
		AudioCodec:      config.AcodecAuto,
		OriginalVideoID: "137",
		MaxHeight:       "1080p",
		MaxFramerate:    "60",
	}
	opts := BuildOptions(cfg, config.ToolsConfig{FFmpeg: "ffmpeg"})
	assert.Equal(t, "137+ba", opts["format"])
	assert.NotContains(t, opts, "format_sort")
}

func TestBuildOptionsSongOnlyAppends(t *testing.T) {
	cfg := &config.DownloadConfig{
		DestDir:      ".",
		AudioOnly:    true,
		SongOnly:     true,
		VideoCodec:   config.VcodecBest,
		AudioCodec:   config.AcodecMP3,
		MaxHeight:    "1080p",
		MaxFramerate: "60",
	}
	opts := BuildOptions(cfg, config.ToolsConfig{FFmpeg: "ffmpeg"})
	pps := opts["postprocessors"].([]PostProcessor)
	require.Len(t, pps, 3)
	assert.Equal(t, "FFmpegExtractAudio", pps[0].Key)
	assert.Equal(t, "SponsorBlock", pps[1].Key)
}

func TestEffectiveVcodec(t *testing.T) {
	assert.Equal(t, config.VcodecOriginal, EffectiveVcodec(true, "x264", true))
	assert.Equal(t, config.VcodecX265, EffectiveVcodec(false, "x265", false))
	assert.Equal(t, config.VcodecNLE, EffectiveVcodec(false, "Auto", true))
	assert.Equal(t, config.VcodecBest, EffectiveVcodec(false, "Auto", false))
	assert.Equal(t, config.VcodecBest, EffectiveVcodec(false, "", false))
}
