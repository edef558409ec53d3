package ffmpeg

import (
	"strings"

	"github.com/fetcharr/fetcharr/internal/config"
)

// Codecs an NLE (video editor) can import without conversion.
var (
	nleCompatibleVcodecs = map[string]struct{}{
		"avc1": {}, "h264": {}, "hevc": {}, "h265": {}, "prores": {},
	}
	nleCompatibleAcodecs = map[string]struct{}{
		"aac": {}, "mp3": {}, "mp4a": {}, "pcm_s16le": {}, "pcm_s24le": {},
	}
)

// vcodecNameToTarget resolves an ffprobe codec_name to the transcode target
// that keeps the stream as-is. Unknown codecs resolve to x264.
var vcodecNameToTarget = map[string]Target{
	"avc1":   TargetX264,
	"h264":   TargetX264,
	"hevc":   TargetX265,
	"h265":   TargetX265,
	"prores": TargetProRes,
}

// targetToVcodecName is the canonical ffprobe name per target, used for the
// "input already is the target" check.
var targetToVcodecName = map[Target]string{
	TargetX264:   "avc1",
	TargetX265:   "hevc",
	TargetProRes: "prores",
	TargetAV1:    "av1",
}

// Decision is the resolved plan for one downloaded file.
type Decision struct {
	CopyVideo bool
	CopyAudio bool
	Target    Target

	BigDimension    bool
	DurationSeconds int
}

// Ext returns the output container extension for the decision's target.
func (d Decision) Ext() string {
	if d.Target == TargetProRes {
		return ".mov"
	}
	return ".mp4"
}

// Remux reports whether both streams are copied, which makes the run a pure
// container rewrite.
func (d Decision) Remux() bool {
	return d.CopyVideo && d.CopyAudio
}

func resolveTarget(vcodec string) Target {
	if t, ok := vcodecNameToTarget[strings.ToLower(vcodec)]; ok {
		return t
	}
	return TargetX264
}

// Decide maps the requested codec mode and the probed input onto a concrete
// copy/re-encode plan. The second return is false for Best, which skips
// post-processing entirely.
func Decide(mode config.VideoCodecMode, info MediaInfo) (Decision, bool) {
	d := Decision{
		BigDimension:    info.BigDimension,
		DurationSeconds: info.DurationSeconds,
	}
	vcodec := strings.ToLower(info.VideoCodec)
	acodec := strings.ToLower(info.AudioCodec)
	_, aCompatible := nleCompatibleAcodecs[acodec]

	switch mode {
	case config.VcodecBest:
		return Decision{}, false

	case config.VcodecOriginal:
		// Remux only: both streams copied into a friendlier container.
		d.CopyVideo = true
		d.CopyAudio = true
		d.Target = resolveTarget(vcodec)

	case config.VcodecNLE:
		_, vCompatible := nleCompatibleVcodecs[vcodec]
		d.CopyAudio = aCompatible
		if vCompatible {
			d.CopyVideo = true
			d.Target = resolveTarget(vcodec)
		} else {
			d.CopyVideo = false
			d.Target = TargetX264
		}

	default:
		// Specific codec requested. Copy the video only when the input
		// already carries the target codec; audio follows NLE
		// compatibility independently.
		d.Target = Target(mode)
		d.CopyVideo = targetToVcodecName[d.Target] == vcodec
		d.CopyAudio = aCompatible
	}
	return d, true
}
