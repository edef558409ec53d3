// Package ytdlp drives the yt-dlp binary: option construction, progress and
// log parsing, stall detection and the retry loop around a download session.
package ytdlp

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fetcharr/fetcharr/internal/config"
)

// OptionMap is a fragment of the yt-dlp option set, keyed by yt-dlp's own
// option names. Fragments from the per-concern builders are merged into one
// map and then lowered to argv.
type OptionMap map[string]any

// PostProcessor is one entry of the "postprocessors" option.
type PostProcessor struct {
	Key            string
	When           string
	PreferredCodec string
	// Categories is the SponsorBlock category list for ModifyChapters.
	Categories []string
}

// SponsorBlockCategories are the segment categories removed in song-only
// mode.
var SponsorBlockCategories = []string{
	"sponsor",
	"intro",
	"outro",
	"selfpromo",
	"preview",
	"filler",
	"interaction",
	"music_offtopic",
	"poi_highlight",
	"chapter",
}

// outputTemplate caps the title at 100 characters and keeps the uploader for
// disambiguation.
const outputTemplate = "%(title).100s - %(uploader)s.%(ext)s"

// fileStemLimit is the overall output file stem cap, passed to yt-dlp as
// trim_file_name.
const fileStemLimit = 250

// FileOpts builds the file and playlist handling fragment.
func FileOpts(playlist bool, destDir string, indicesEnabled bool, indices string, ffmpegPath string) OptionMap {
	opts := OptionMap{
		"noplaylist":     !playlist,
		"overwrites":     true,
		"trim_file_name": fileStemLimit,
		"outtmpl":        filepath.Join(destDir, outputTemplate),
	}
	if playlist {
		// Keep going when single entries fail; only the download step may
		// ignore errors, extraction problems still surface.
		opts["ignoreerrors"] = "only_download"
	} else {
		opts["ignoreerrors"] = false
	}
	if indicesEnabled {
		if indices == "" {
			indices = "1"
		}
		opts["playlist_items"] = indices
	}
	if ffmpegPath != "" && ffmpegPath != "ffmpeg" {
		opts["ffmpeg_location"] = ffmpegPath
	}
	return opts
}

// AVOpts builds the format selection fragment for normal (non-Original)
// downloads.
func AVOpts(audioOnly bool, acodec config.AudioCodecMode, quality, framerate string) OptionMap {
	opts := OptionMap{}
	if audioOnly {
		format := "ba/ba*"
		pp := PostProcessor{Key: "FFmpegExtractAudio"}
		if acodec != config.AcodecAuto {
			codec := strings.ToLower(string(acodec))
			format = "ba[acodec*=" + codec + "]/" + format
			pp.PreferredCodec = codec
		}
		opts["format"] = format
		opts["extract_audio"] = true
		opts["postprocessors"] = []PostProcessor{pp}
		return opts
	}

	resolution := strings.TrimSuffix(quality, "p")
	opts["format"] = "((bv[vcodec~='avc1|h264'][height=" + resolution + "]/bv[height=" + resolution + "]/bv)" +
		"+(ba[acodec~='aac|mp3|mp4a']/ba))/b"
	opts["format_sort"] = []string{"res:" + resolution, "fps:" + framerate}
	opts["merge_output_format"] = "mp4"
	return opts
}

// OriginalOpts builds the format fragment for Original mode, where the user
// picked explicit stream ids instead of filter expressions.
func OriginalOpts(videoID, audioID string, audioOnly bool) OptionMap {
	var format string
	switch {
	case audioOnly && audioID != "":
		format = audioID
	case videoID != "" && audioID != "":
		format = videoID + "+" + audioID
	case videoID != "":
		format = videoID + "+ba"
	case audioID != "":
		format = "bv+" + audioID
	default:
		format = "bv+ba/b"
	}
	return OptionMap{"format": format, "merge_output_format": "mp4"}
}

// TrimOpts builds the trim fragment. Trimming routes the download through
// ffmpeg so the cut happens during transfer rather than afterwards.
func TrimOpts(start, end *config.Timecode, ffmpegPath string) OptionMap {
	if start == nil && end == nil {
		return OptionMap{}
	}
	startStr := "00:00:00"
	if start != nil {
		startStr = start.String()
	}
	args := []string{"-ss", startStr}
	if end != nil {
		args = append(args, "-to", end.String())
	}
	opts := OptionMap{
		"external_downloader":      "ffmpeg",
		"external_downloader_args": OptionMap{"ffmpeg_i": args},
	}
	if runtime.GOOS == "windows" {
		// The external downloader resolves ffmpeg itself on Windows.
		opts["ffmpeg_location"] = ffmpegPath
	}
	return opts
}

// SubtitlesOpts builds the subtitle fragment.
func SubtitlesOpts(enabled bool) OptionMap {
	if !enabled {
		return OptionMap{}
	}
	return OptionMap{"subtitleslangs": []string{"all"}, "writesubtitles": true}
}

// CookiesOpts builds the browser cookie fragment. An empty browser means no
// cookie extraction.
func CookiesOpts(browser string) OptionMap {
	if browser == "" {
		return OptionMap{}
	}
	return OptionMap{"cookiesfrombrowser": []string{strings.ToLower(browser)}}
}

// SponsorBlockOpts builds the song-only fragment: mark SponsorBlock segments
// before processing, then cut the listed categories out.
func SponsorBlockOpts(songOnly bool, categories []string) OptionMap {
	if !songOnly {
		return OptionMap{}
	}
	return OptionMap{
		"postprocessors": []PostProcessor{
			{Key: "SponsorBlock", When: "pre_process"},
			{Key: "ModifyChapters", Categories: categories},
		},
	}
}

// Merge unions the fragments left to right. Keys are disjoint across the
// builders except "postprocessors", which accumulates.
func Merge(fragments ...OptionMap) OptionMap {
	merged := OptionMap{}
	for _, frag := range fragments {
		for k, v := range frag {
			if k == "postprocessors" {
				existing, _ := merged[k].([]PostProcessor)
				merged[k] = append(existing, v.([]PostProcessor)...)
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// BuildOptions assembles the full option map for one download session.
func BuildOptions(cfg *config.DownloadConfig, tools config.ToolsConfig) OptionMap {
	fragments := []OptionMap{
		FileOpts(cfg.Playlist, cfg.DestDir, cfg.IndicesEnabled, cfg.Indices, tools.FFmpeg),
	}
	if cfg.VideoCodec == config.VcodecOriginal {
		fragments = append(fragments, OriginalOpts(cfg.OriginalVideoID, cfg.OriginalAudioID, cfg.AudioOnly))
	} else {
		fragments = append(fragments, AVOpts(cfg.AudioOnly, cfg.AudioCodec, cfg.MaxHeight, cfg.MaxFramerate))
	}
	fragments = append(fragments,
		TrimOpts(cfg.TrimStart, cfg.TrimEnd, tools.FFmpeg),
		SubtitlesOpts(cfg.Subtitles),
		CookiesOpts(cfg.CookiesBrowser),
		SponsorBlockOpts(cfg.SongOnly, SponsorBlockCategories),
	)
	merged := Merge(fragments...)
	if tools.Verbose {
		merged["verbose"] = true
	}
	return merged
}

// EffectiveVcodec resolves the user's codec choices to a single mode:
// Original wins, then an explicit codec, then the NLE toggle, else Best.
func EffectiveVcodec(originalOn bool, vcodec string, nleReady bool) config.VideoCodecMode {
	if originalOn {
		return config.VcodecOriginal
	}
	if vcodec != "" && vcodec != "Auto" {
		return config.VideoCodecMode(vcodec)
	}
	if nleReady {
		return config.VcodecNLE
	}
	return config.VcodecBest
}
