package ytdlp

import (
	"fmt"
	"sort"
	"strings"
)

// Format is one entry of yt-dlp's raw format list.
type Format struct {
	FormatID string  `json:"format_id"`
	Vcodec   string  `json:"vcodec"`
	Acodec   string  `json:"acodec"`
	Height   int     `json:"height"`
	ABR      float64 `json:"abr"`
}

// FormatChoice is a picker entry for Original-mode stream selection.
type FormatChoice struct {
	FormatID string
	Label    string
}

// FilterFormats reduces the raw format list to the best representative per
// codec family: highest height per video codec, highest average bitrate per
// audio codec. Muxed formats count as video; only audio-only formats reach
// the audio list. Both lists come back sorted best first.
func FilterFormats(formats []Format) ([]FormatChoice, []FormatChoice) {
	type candidate struct {
		family   string
		formatID string
		height   int
		abr      float64
	}
	videoSeen := map[string]candidate{}
	audioSeen := map[string]candidate{}

	for _, f := range formats {
		hasVideo := f.Vcodec != "" && f.Vcodec != "none"
		hasAudio := f.Acodec != "" && f.Acodec != "none"

		if hasVideo {
			family := codecFamily(f.Vcodec)
			if best, ok := videoSeen[family]; !ok || f.Height > best.height {
				videoSeen[family] = candidate{family: family, formatID: f.FormatID, height: f.Height}
			}
		}
		if hasAudio && !hasVideo {
			family := codecFamily(f.Acodec)
			if best, ok := audioSeen[family]; !ok || f.ABR > best.abr {
				audioSeen[family] = candidate{family: family, formatID: f.FormatID, abr: f.ABR}
			}
		}
	}

	videos := make([]candidate, 0, len(videoSeen))
	for _, c := range videoSeen {
		videos = append(videos, c)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].height > videos[j].height })

	audios := make([]candidate, 0, len(audioSeen))
	for _, c := range audioSeen {
		audios = append(audios, c)
	}
	sort.Slice(audios, func(i, j int) bool { return audios[i].abr > audios[j].abr })

	video := make([]FormatChoice, 0, len(videos))
	for _, c := range videos {
		video = append(video, FormatChoice{
			FormatID: c.formatID,
			Label:    fmt.Sprintf("%s - %dp", c.family, c.height),
		})
	}
	audio := make([]FormatChoice, 0, len(audios))
	for _, c := range audios {
		label := c.family
		if c.abr > 0 {
			label = fmt.Sprintf("%s - %dkbps", c.family, int(c.abr))
		}
		audio = append(audio, FormatChoice{FormatID: c.formatID, Label: label})
	}
	return video, audio
}

// codecFamily strips the profile suffix: "avc1.64001F" -> "avc1".
func codecFamily(codec string) string {
	family, _, _ := strings.Cut(codec, ".")
	return family
}
