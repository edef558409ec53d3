package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// VideoCodecMode is the target video codec selection.
type VideoCodecMode string

// Video codec modes. Best skips post-processing entirely; Original remuxes
// the picked streams; NLE remuxes or re-encodes for editor compatibility;
// the rest force a specific codec.
const (
	VcodecBest     VideoCodecMode = "Best"
	VcodecOriginal VideoCodecMode = "Original"
	VcodecNLE      VideoCodecMode = "NLE"
	VcodecX264     VideoCodecMode = "x264"
	VcodecX265     VideoCodecMode = "x265"
	VcodecProRes   VideoCodecMode = "ProRes"
	VcodecAV1      VideoCodecMode = "AV1"
)

// AudioCodecMode is the target audio codec selection for audio-only jobs.
type AudioCodecMode string

// Audio codec modes.
const (
	AcodecAuto   AudioCodecMode = "Auto"
	AcodecAAC    AudioCodecMode = "AAC"
	AcodecALAC   AudioCodecMode = "ALAC"
	AcodecFLAC   AudioCodecMode = "FLAC"
	AcodecOPUS   AudioCodecMode = "OPUS"
	AcodecMP3    AudioCodecMode = "MP3"
	AcodecVORBIS AudioCodecMode = "VORBIS"
	AcodecWAV    AudioCodecMode = "WAV"
)

// Timecode is an h:m:s trim endpoint.
type Timecode struct {
	Hours   int
	Minutes int
	Seconds int
}

// ParseTimecode parses "H:M:S" with m<60 and s<60.
func ParseTimecode(s string) (Timecode, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Timecode{}, fmt.Errorf("timecode %q: want H:M:S", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Timecode{}, fmt.Errorf("timecode %q: invalid component %q", s, p)
		}
		vals[i] = n
	}
	tc := Timecode{Hours: vals[0], Minutes: vals[1], Seconds: vals[2]}
	if tc.Minutes >= 60 || tc.Seconds >= 60 {
		return Timecode{}, fmt.Errorf("timecode %q: minutes and seconds must be < 60", s)
	}
	return tc, nil
}

// String renders the timecode as HH:MM:SS, the form ffmpeg accepts.
func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
}

// TotalSeconds returns the timecode as a second count.
func (t Timecode) TotalSeconds() int {
	return t.Hours*3600 + t.Minutes*60 + t.Seconds
}

// Before reports whether t is strictly earlier than other.
func (t Timecode) Before(other Timecode) bool {
	return t.TotalSeconds() < other.TotalSeconds()
}

// DownloadConfig is the immutable input to the pipeline core. It is
// populated from the persisted config document and per-invocation flags,
// validated once, then shared read-only.
type DownloadConfig struct {
	URL      string   `mapstructure:"url"`
	Queue    []string `mapstructure:"queue"`
	DestDir  string   `mapstructure:"dest_dir"`
	Playlist bool     `mapstructure:"playlist"`

	// Indices is a yt-dlp playlist_items spec ("1,3-5"); empty means all.
	IndicesEnabled bool   `mapstructure:"indices_enabled"`
	Indices        string `mapstructure:"indices"`

	AudioOnly  bool           `mapstructure:"audio_only"`
	SongOnly   bool           `mapstructure:"song_only"`
	VideoCodec VideoCodecMode `mapstructure:"video_codec"`
	AudioCodec AudioCodecMode `mapstructure:"audio_codec"`

	// Original-mode explicit stream selection; empty means best.
	OriginalVideoID string `mapstructure:"original_video_id"`
	OriginalAudioID string `mapstructure:"original_audio_id"`

	MaxHeight    string `mapstructure:"max_height"`    // e.g. "1080p"
	MaxFramerate string `mapstructure:"max_framerate"` // "30" | "60"

	TrimStart *Timecode `mapstructure:"-"`
	TrimEnd   *Timecode `mapstructure:"-"`

	Subtitles      bool   `mapstructure:"subtitles"`
	CookiesBrowser string `mapstructure:"cookies_browser"` // empty = none
}

// URLs returns the main URL (when set) followed by the queue.
func (c *DownloadConfig) URLs() []string {
	var urls []string
	if c.URL != "" {
		urls = append(urls, c.URL)
	}
	return append(urls, c.Queue...)
}

// Height returns the numeric max height ("1080p" -> "1080").
func (c *DownloadConfig) Height() string {
	return strings.TrimSuffix(c.MaxHeight, "p")
}

// Validate enforces the cross-field invariants: indices imply playlist,
// song-only implies audio-only, trim endpoints are monotonic, and every URL
// is a well-formed absolute URL.
func (c *DownloadConfig) Validate() error {
	for _, u := range c.URLs() {
		if !ValidURL(u) {
			return fmt.Errorf("invalid URL %q", u)
		}
	}
	if c.IndicesEnabled && !c.Playlist {
		return fmt.Errorf("playlist indices require playlist mode")
	}
	if c.SongOnly && !c.AudioOnly {
		return fmt.Errorf("song-only requires audio-only")
	}
	if c.TrimStart != nil && c.TrimEnd != nil && !c.TrimStart.Before(*c.TrimEnd) {
		return fmt.Errorf("trim start %s must be before trim end %s", c.TrimStart, c.TrimEnd)
	}
	switch c.VideoCodec {
	case VcodecBest, VcodecOriginal, VcodecNLE, VcodecX264, VcodecX265, VcodecProRes, VcodecAV1:
	default:
		return fmt.Errorf("invalid video codec %q", c.VideoCodec)
	}
	switch c.AudioCodec {
	case AcodecAuto, AcodecAAC, AcodecALAC, AcodecFLAC, AcodecOPUS, AcodecMP3, AcodecVORBIS, AcodecWAV:
	default:
		return fmt.Errorf("invalid audio codec %q", c.AudioCodec)
	}
	return nil
}

// ValidURL reports whether s is a well-formed absolute URL with a scheme
// and authority.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
