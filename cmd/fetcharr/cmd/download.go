package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/ffmpeg"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/pipeline"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
	"github.com/fetcharr/fetcharr/internal/ytdlp"
)

var downloadCmd = &cobra.Command{
	Use:   "download URL [URL...]",
	Short: "Download one or more URLs",
	Long: `Download fetches each URL with yt-dlp, then remuxes or re-encodes the
result according to the selected codec target. Extra URLs queue up behind
the first; failed entries stay queued for a later retry.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.String("dest", "", "destination directory (default from config)")
	f.Bool("playlist", false, "treat the URL as a playlist")
	f.String("items", "", "playlist items to download, e.g. \"1,3-5\" (implies --playlist)")
	f.Bool("audio-only", false, "download audio only")
	f.Bool("song-only", false, "audio only with sponsor segments removed (implies --audio-only)")
	f.String("codec", "Auto", "video codec target (Auto, Best, Original, NLE, x264, x265, ProRes, AV1)")
	f.Bool("original", false, "keep the picked streams as-is, remux only")
	f.Bool("nle", false, "make the output editor-friendly (with --codec Auto)")
	f.String("audio-codec", "", "audio codec for audio-only downloads (Auto, AAC, ALAC, FLAC, OPUS, MP3, VORBIS, WAV)")
	f.String("video-id", "", "explicit video format id for --original")
	f.String("audio-id", "", "explicit audio format id for --original")
	f.String("max-height", "", "resolution cap, e.g. 1080p")
	f.String("max-framerate", "", "framerate cap, 30 or 60")
	f.String("trim-start", "", "trim start timecode H:M:S")
	f.String("trim-end", "", "trim end timecode H:M:S")
	f.Bool("subs", false, "download all available subtitles")
	f.String("cookies-from", "", "browser to read cookies from")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dl, err := downloadConfigFromFlags(cmd.Flags(), cfg, args)
	if err != nil {
		return err
	}

	runner := toolrunner.NewExecRunner()
	token := event.NewCancelToken()

	view := newConsoleView(os.Stderr)
	coal := event.NewCoalescer(view.render)
	view.coal = coal

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()
	go coal.Run(ctx)

	// First interrupt cancels cooperatively; a second one kills the process
	// the usual way.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			view.Println("Cancelling...")
			token.Cancel()
			signal.Stop(sigCh)
		case <-ctx.Done():
		}
	}()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			logger.Warn("history store unavailable", "error", err.Error())
		} else {
			defer store.Close()
		}
	}

	// One session per batch: the option set is fixed, so every URL
	// downloads with identical arguments.
	session := ytdlp.NewSession(runner, cfg.Tools, dl, logger)
	factory := func(progress event.ProgressSink, status event.StatusSink) pipeline.Downloader {
		transcoder := ffmpeg.NewTranscoder(runner, cfg.Tools, progress, token, logger)
		return ytdlp.NewDriver(session, progress, status, token, transcoder, logger)
	}
	orch := pipeline.NewOrchestrator(factory, view, view, token, store, logger)

	res := orch.Run(ctx, dl)
	stop() // final coalescer flush
	view.Finish()

	return summarize(view, res)
}

// downloadConfigFromFlags layers explicitly-set flags over the config
// file's download section and validates the result.
func downloadConfigFromFlags(f *pflag.FlagSet, cfg *config.Config, args []string) (*config.DownloadConfig, error) {
	dl := cfg.Download
	dl.URL = args[0]
	dl.Queue = append(append([]string(nil), dl.Queue...), args[1:]...)

	if f.Changed("dest") {
		dl.DestDir, _ = f.GetString("dest")
	}
	if f.Changed("playlist") {
		dl.Playlist, _ = f.GetBool("playlist")
	}
	if f.Changed("items") {
		dl.Indices, _ = f.GetString("items")
		dl.IndicesEnabled = dl.Indices != ""
		dl.Playlist = dl.Playlist || dl.IndicesEnabled
	}
	if f.Changed("audio-only") {
		dl.AudioOnly, _ = f.GetBool("audio-only")
	}
	if f.Changed("song-only") {
		dl.SongOnly, _ = f.GetBool("song-only")
		dl.AudioOnly = dl.AudioOnly || dl.SongOnly
	}
	if f.Changed("audio-codec") {
		ac, _ := f.GetString("audio-codec")
		dl.AudioCodec = config.AudioCodecMode(ac)
	}
	if f.Changed("video-id") {
		dl.OriginalVideoID, _ = f.GetString("video-id")
	}
	if f.Changed("audio-id") {
		dl.OriginalAudioID, _ = f.GetString("audio-id")
	}
	if f.Changed("max-height") {
		dl.MaxHeight, _ = f.GetString("max-height")
	}
	if f.Changed("max-framerate") {
		dl.MaxFramerate, _ = f.GetString("max-framerate")
	}
	if f.Changed("subs") {
		dl.Subtitles, _ = f.GetBool("subs")
	}
	if f.Changed("cookies-from") {
		dl.CookiesBrowser, _ = f.GetString("cookies-from")
	}

	if f.Changed("codec") || f.Changed("original") || f.Changed("nle") {
		codec, _ := f.GetString("codec")
		original, _ := f.GetBool("original")
		nle, _ := f.GetBool("nle")
		dl.VideoCodec = ytdlp.EffectiveVcodec(original, codec, nle)
	}

	if s, _ := f.GetString("trim-start"); s != "" {
		tc, err := config.ParseTimecode(s)
		if err != nil {
			return nil, err
		}
		dl.TrimStart = &tc
	}
	if s, _ := f.GetString("trim-end"); s != "" {
		tc, err := config.ParseTimecode(s)
		if err != nil {
			return nil, err
		}
		dl.TrimEnd = &tc
	}

	if err := dl.Validate(); err != nil {
		return nil, err
	}
	return &dl, nil
}

// summarize prints failure details and decides the exit status: the batch
// fails only when nothing completed.
func summarize(view *consoleView, res *pipeline.BatchResult) error {
	completed := 0
	var firstFailure *report.ErrorReport
	for _, job := range res.Jobs {
		if job.State() == pipeline.JobStateCompleted {
			completed++
			continue
		}
		if rep := job.Report(); rep != nil {
			if firstFailure == nil {
				firstFailure = rep
			}
			if rep.HasDetail {
				view.Println(rep.Detail)
			}
		}
	}
	if len(res.RemainingQueue) > 0 {
		view.Println(fmt.Sprintf("%d URL(s) left in the queue.", len(res.RemainingQueue)))
	}
	if completed == 0 && firstFailure != nil {
		return fmt.Errorf("%s", firstFailure.ShortMessage)
	}
	return nil
}

// consoleView renders progress on a single rewritten line and passes
// status messages straight through. It feeds the coalescer so bursts of
// progress events collapse into bounded-rate redraws.
type consoleView struct {
	w    *os.File
	coal *event.Coalescer

	mu       sync.Mutex
	last     event.ProgressEvent
	has      bool
	lineOpen bool
}

func newConsoleView(w *os.File) *consoleView {
	return &consoleView{w: w}
}

func (v *consoleView) OnDownloadProgress(ev event.ProgressEvent) { v.store(ev) }
func (v *consoleView) OnProcessProgress(ev event.ProgressEvent)  { v.store(ev) }

func (v *consoleView) store(ev event.ProgressEvent) {
	v.mu.Lock()
	v.last = ev
	v.has = true
	v.mu.Unlock()
	v.coal.MarkDirty()
}

// OnStatus prints a discrete message, closing any open progress line.
func (v *consoleView) OnStatus(message string) {
	v.Println(message)
}

// Println writes a full line, breaking out of the progress line first.
func (v *consoleView) Println(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lineOpen {
		fmt.Fprintln(v.w)
		v.lineOpen = false
	}
	fmt.Fprintln(v.w, message)
}

// render redraws the progress line from the latest event.
func (v *consoleView) render() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.has {
		return
	}
	ev := v.last
	switch ev.Phase {
	case event.PhaseProcess:
		fmt.Fprintf(v.w, "\r%s %s        ", ev.ActionLabel, event.FormatFraction(ev.ProgressFraction))
	default:
		total := ev.TotalBytes
		if total <= 0 {
			total = ev.TotalBytesEstimate
		}
		fmt.Fprintf(v.w, "\rDownloading %s of %s at %s        ",
			event.FormatFraction(ev.ProgressFraction),
			event.FormatBytes(total),
			event.FormatSpeed(ev.SpeedBps))
	}
	v.lineOpen = true
}

// Finish closes the progress line at the end of a batch.
func (v *consoleView) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lineOpen {
		fmt.Fprintln(v.w)
		v.lineOpen = false
	}
}
