package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/event"
	"github.com/fetcharr/fetcharr/internal/report"
	"github.com/fetcharr/fetcharr/internal/toolrunner"
)

// Action labels surfaced with process-phase progress events.
const (
	ActionRemux    = "Remuxing"
	ActionReencode = "Re-encoding"
)

// Transcoder remuxes or re-encodes downloaded files according to the
// decision table, replacing the input in place on success.
type Transcoder struct {
	runner   toolrunner.Runner
	cfg      config.ToolsConfig
	selector *Selector
	prober   *Prober
	logger   *slog.Logger

	progress event.ProgressSink
	cancel   *event.CancelToken
}

// NewTranscoder wires a transcoder from its collaborators. The cancel token
// is shared with the download driver so one cancellation stops both phases.
func NewTranscoder(
	runner toolrunner.Runner,
	cfg config.ToolsConfig,
	progress event.ProgressSink,
	cancel *event.CancelToken,
	logger *slog.Logger,
) *Transcoder {
	return &Transcoder{
		runner:   runner,
		cfg:      cfg,
		selector: NewSelector(runner, cfg, logger),
		prober:   NewProber(runner, cfg, logger),
		logger:   logger,
		progress: progress,
		cancel:   cancel,
	}
}

// PostProcess probes path, decides on a plan for the requested codec mode
// and runs ffmpeg when work is needed. Best returns immediately. On success
// the input file is replaced by <stem>.mp4 or <stem>.mov.
func (t *Transcoder) PostProcess(ctx context.Context, path string, mode config.VideoCodecMode) error {
	if mode == config.VcodecBest {
		return nil
	}

	info, err := t.prober.Probe(ctx, path)
	if err != nil {
		return err
	}
	dec, ok := Decide(mode, info)
	if !ok {
		return nil
	}

	vcodecArg := "copy"
	var quality []string
	if !dec.CopyVideo {
		vcodecArg, quality, err = t.selector.FastestEncoder(ctx, dec.Target)
		if err != nil {
			return err
		}
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	tmpPath := stem + ".tmp" + dec.Ext()
	finalPath := stem + dec.Ext()
	argv := t.buildArgs(path, tmpPath, dec, vcodecArg, quality, info.Height)

	if err := t.run(ctx, argv, dec, tmpPath); err != nil {
		return err
	}

	// Atomic swap: the rename stays on one filesystem because the temp file
	// sits next to the input.
	if err := os.Remove(path); err != nil {
		return &report.TranscodeError{ReturnCode: 0, Stderr: err.Error()}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &report.TranscodeError{ReturnCode: 0, Stderr: err.Error()}
	}
	t.logger.Info("post-processing done",
		slog.String("output", finalPath),
		slog.Bool("remux", dec.Remux()))
	return nil
}

func (t *Transcoder) buildArgs(input, tmpPath string, dec Decision, vcodecArg string, quality []string, height int) []string {
	acodecArg := "aac"
	if dec.CopyAudio {
		acodecArg = "copy"
	}
	argv := []string{
		t.cfg.FFmpeg,
		"-hide_banner",
		"-i", input,
		"-c:a", acodecArg,
		"-c:v", vcodecArg,
		"-metadata", "creation_time=now",
	}
	if dec.BigDimension {
		argv = append(argv, AdaptCRF(quality, height)...)
	} else if dec.Target == TargetProRes {
		argv = append(argv, proresQuality...)
	}
	return append(argv, "-progress", "pipe:1", "-y", tmpPath)
}

// run executes ffmpeg, streaming progress events and honoring cancellation.
// On cancel the process is killed and the temp file removed; the input is
// left untouched.
func (t *Transcoder) run(ctx context.Context, argv []string, dec Decision, tmpPath string) error {
	action := ActionReencode
	if dec.Remux() {
		action = ActionRemux
	}
	t.logger.Debug("running ffmpeg", slog.String("argv", strings.Join(argv, " ")))

	proc, err := t.runner.Start(ctx, argv)
	if err != nil {
		return &report.TranscodeError{ReturnCode: -1, Stderr: err.Error()}
	}

	// Drain stderr so the process never blocks on a full pipe; the runner
	// keeps the tail for error reporting.
	go func() {
		for range proc.Stderr() {
		}
	}()

	parser := newProgressParser(float64(dec.DurationSeconds))
	for line := range proc.Stdout() {
		if t.cancel.IsCancelled() {
			_ = proc.Kill()
			continue // drain until the stream closes
		}
		snap, ok := parser.feed(line)
		if !ok {
			continue
		}
		status := "running"
		if snap.Finished {
			status = "finished"
		}
		t.progress.OnProcessProgress(event.ProgressEvent{
			Phase:            event.PhaseProcess,
			Status:           status,
			ProcessedBytes:   snap.TotalSize,
			SpeedBps:         snap.SpeedBps,
			ProgressFraction: parser.Fraction(snap),
			ActionLabel:      action,
		})
	}

	code, stderrTail, waitErr := proc.Wait()
	if t.cancel.IsCancelled() {
		_ = os.Remove(tmpPath)
		return report.ErrCancelled
	}
	if waitErr != nil {
		return &report.TranscodeError{ReturnCode: code, Stderr: waitErr.Error()}
	}
	if code != 0 {
		return &report.TranscodeError{ReturnCode: code, Stderr: stderrTail}
	}
	if _, err := os.Stat(tmpPath); err != nil {
		// Exit 0 but no output is still a failure.
		return &report.TranscodeError{ReturnCode: 0, Stderr: "ffmpeg produced no output file"}
	}
	return nil
}
