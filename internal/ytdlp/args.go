package ytdlp

import (
	"fmt"
	"strings"
)

// Lower translates an option map into the equivalent yt-dlp argv fragment.
// Options are emitted in a fixed order so the command line is deterministic
// regardless of map iteration.
func Lower(opts OptionMap) []string {
	var argv []string

	if v, ok := opts["noplaylist"].(bool); ok {
		if v {
			argv = append(argv, "--no-playlist")
		} else {
			argv = append(argv, "--yes-playlist")
		}
	}
	switch opts["ignoreerrors"] {
	case "only_download":
		argv = append(argv, "--ignore-errors")
	case false:
		argv = append(argv, "--abort-on-error")
	}
	if v, _ := opts["overwrites"].(bool); v {
		argv = append(argv, "--force-overwrites")
	}
	if v, ok := opts["trim_file_name"].(int); ok {
		argv = append(argv, "--trim-filenames", fmt.Sprintf("%d", v))
	}
	if v, ok := opts["outtmpl"].(string); ok {
		argv = append(argv, "--output", v)
	}
	if v, ok := opts["playlist_items"].(string); ok {
		argv = append(argv, "--playlist-items", v)
	}
	if v, ok := opts["ffmpeg_location"].(string); ok {
		argv = append(argv, "--ffmpeg-location", v)
	}
	if v, ok := opts["format"].(string); ok {
		argv = append(argv, "--format", v)
	}
	if v, ok := opts["format_sort"].([]string); ok {
		argv = append(argv, "--format-sort", strings.Join(v, ","))
	}
	if v, ok := opts["merge_output_format"].(string); ok {
		argv = append(argv, "--merge-output-format", v)
	}
	if v, _ := opts["extract_audio"].(bool); v {
		argv = append(argv, "--extract-audio")
	}
	if v, ok := opts["subtitleslangs"].([]string); ok {
		argv = append(argv, "--sub-langs", strings.Join(v, ","))
	}
	if v, _ := opts["writesubtitles"].(bool); v {
		argv = append(argv, "--write-subs")
	}
	if v, ok := opts["cookiesfrombrowser"].([]string); ok && len(v) > 0 {
		argv = append(argv, "--cookies-from-browser", v[0])
	}
	if v, ok := opts["external_downloader"].(string); ok {
		argv = append(argv, "--downloader", v)
	}
	if v, ok := opts["external_downloader_args"].(OptionMap); ok {
		for _, stream := range []string{"ffmpeg_i"} {
			if args, ok := v[stream].([]string); ok {
				argv = append(argv, "--downloader-args", stream+":"+strings.Join(args, " "))
			}
		}
	}
	if pps, ok := opts["postprocessors"].([]PostProcessor); ok {
		argv = append(argv, lowerPostProcessors(pps)...)
	}
	if v, _ := opts["verbose"].(bool); v {
		argv = append(argv, "--verbose")
	}
	return argv
}

func lowerPostProcessors(pps []PostProcessor) []string {
	var argv []string
	for _, pp := range pps {
		switch pp.Key {
		case "FFmpegExtractAudio":
			// --extract-audio itself is lowered from the extract_audio key;
			// only the codec preference maps here.
			if pp.PreferredCodec != "" {
				argv = append(argv, "--audio-format", pp.PreferredCodec)
			}
		case "SponsorBlock":
			// The marking pass; category selection rides on ModifyChapters.
		case "ModifyChapters":
			if len(pp.Categories) > 0 {
				argv = append(argv, "--sponsorblock-remove", strings.Join(pp.Categories, ","))
			}
		}
	}
	return argv
}
