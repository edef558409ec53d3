package ytdlp

import (
	"strconv"
	"strings"

	"github.com/fetcharr/fetcharr/internal/event"
)

// progressMarker prefixes machine-readable progress lines so they can be
// told apart from yt-dlp's human output.
const progressMarker = "FETCHARR-DL"

// progressTemplate makes yt-dlp emit one parseable line per progress
// update. Missing values render as "NA".
const progressTemplate = "download:" + progressMarker +
	" %(progress.status)s" +
	" %(progress.downloaded_bytes)s" +
	" %(progress.total_bytes)s" +
	" %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s" +
	" %(info.playlist_autonumber)s" +
	" %(info.n_entries)s"

// downloadProgress is one decoded progress line.
type downloadProgress struct {
	Status             string
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	SpeedBps           float64
	PlaylistIndex      int
	PlaylistCount      int
}

// parseProgressLine decodes a template line. The bool is false for any
// other output.
func parseProgressLine(line string) (downloadProgress, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 8 || fields[0] != progressMarker {
		return downloadProgress{}, false
	}
	return downloadProgress{
		Status:             fields[1],
		DownloadedBytes:    parseBytes(fields[2]),
		TotalBytes:         parseBytes(fields[3]),
		TotalBytesEstimate: parseBytes(fields[4]),
		SpeedBps:           parseRate(fields[5]),
		PlaylistIndex:      int(parseBytes(fields[6])),
		PlaylistCount:      int(parseBytes(fields[7])),
	}, true
}

// parseBytes parses a numeric field, treating yt-dlp's NA/None markers as
// zero. Float renderings are truncated.
func parseBytes(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseRate(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// fraction converts a progress line to the [0, 1] scale: clamped below
// 0.99 while downloading, exactly 1.0 when finished, and holding the
// previous value when no total is known.
func (p downloadProgress) fraction(last float64) float64 {
	if p.Status == "finished" {
		return 1.0
	}
	total := p.TotalBytes
	if total <= 0 {
		total = p.TotalBytesEstimate
	}
	if total <= 0 {
		return last
	}
	f := float64(p.DownloadedBytes) / float64(total)
	if f < 0 {
		return 0
	}
	if f >= 0.99 {
		return 0.989
	}
	return f
}

// event converts the progress line to a download-phase ProgressEvent.
func (p downloadProgress) event(fraction float64) event.ProgressEvent {
	return event.ProgressEvent{
		Phase:              event.PhaseDownload,
		Status:             p.Status,
		ProcessedBytes:     p.DownloadedBytes,
		TotalBytes:         p.TotalBytes,
		TotalBytesEstimate: p.TotalBytesEstimate,
		SpeedBps:           p.SpeedBps,
		ProgressFraction:   fraction,
		PlaylistIndex:      p.PlaylistIndex,
		PlaylistCount:      p.PlaylistCount,
	}
}
