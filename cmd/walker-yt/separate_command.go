package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"walkeryt/internal/config"
	"walkeryt/internal/deps"
	"walkeryt/internal/download"
	"walkeryt/internal/guard"
	"walkeryt/internal/logging"
	"walkeryt/internal/notifications"
	"walkeryt/internal/pcm"
	"walkeryt/internal/pipeline"
	"walkeryt/internal/player"
	"walkeryt/internal/preflight"
	"walkeryt/internal/runstore"
	"walkeryt/internal/segment"
	"walkeryt/internal/separation"
	"walkeryt/internal/services"
	"walkeryt/internal/tail"
)

type separateOptions struct {
	keep   string
	noPlay bool
	title  string
}

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	var opts separateOptions

	cmd := &cobra.Command{
		Use:   "separate <video-id|url>",
		Short: "Download a track, separate it in chunks, and play while it separates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			return runSeparate(cmd.Context(), cmd.OutOrStdout(), cfg, store, ctx.log(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.keep, "keep", "k", "", "Component to keep: vocals or instrumental (default from config)")
	cmd.Flags().BoolVar(&opts.noPlay, "no-play", false, "Separate the whole track without starting the player")
	cmd.Flags().StringVar(&opts.title, "title", "", "Player window title")
	return cmd
}

func runSeparate(parent context.Context, out io.Writer, cfg *config.Config, store *runstore.Store, logger *slog.Logger, arg string, opts separateOptions) (retErr error) {
	if parent == nil {
		parent = context.Background()
	}
	if opts.noPlay {
		cfg.Player.Enabled = false
	}

	src, err := download.ResolveSource(arg, cfg.Download.URLTemplate)
	if err != nil {
		return services.Wrap(services.ErrValidation, "separate", "resolve source", "", err)
	}
	keep := opts.keep
	if strings.TrimSpace(keep) == "" {
		keep = cfg.Separation.Keep
	}
	component, err := separation.ParseComponent(keep)
	if err != nil {
		return services.Wrap(services.ErrValidation, "separate", "parse component", "", err)
	}

	if err := checkReady(parent, cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g := guard.New(cfg, store, logger)
	superseded, err := g.Acquire(ctx)
	if err != nil {
		return services.Wrap(services.ErrFatalSetup, "separate", "acquire instance lock", "", err)
	}
	defer func() {
		if err := g.Release(); err != nil && retErr == nil {
			logger.Warn("instance cleanup incomplete", logging.Error(err))
		}
	}()
	if superseded.InstancePID != 0 {
		fmt.Fprintf(out, "Stopped previous instance (pid %d)\n", superseded.InstancePID)
	}
	stopSignals := g.InstallSignalHandlers(ctx, func(os.Signal) { cancel() })
	defer stopSignals()

	progress := pipeline.NewProgressReporter(notifications.NewSink(cfg, logger))
	defer progress.Close()
	rc := pipeline.NewRunContext(cfg, pipeline.Track{ID: src.TrackID, SourceURL: src.URL}, component, logger)
	ctx = rc.Context(ctx)
	runLogger := rc.Logger

	record := &runstore.Run{
		ID:         rc.RunID,
		TrackID:    src.TrackID,
		SourceURL:  src.URL,
		Keep:       string(component),
		Status:     runstore.StatusDownloading,
		BufferPath: rc.BufferPath,
	}
	if err := store.CreateRun(ctx, record); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	// fail records a caller-decided outcome after the worker stopped.
	fail := func(err error) error {
		final := context.WithoutCancel(ctx)
		if ferr := store.FinishRun(final, rc.RunID, services.FailureStatus(err), services.Diagnostic(err)); ferr != nil {
			runLogger.Warn("run history write failed", logging.Error(ferr))
		}
		progress.Finish(final, err)
		return err
	}

	input, err := download.New(cfg, runLogger).Fetch(ctx, src.URL, rc.Dir, func(percent float64) {
		progress.Download(ctx, percent)
	})
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(context.Canceled, err)
		}
		return fail(services.Wrap(services.ErrFatalSetup, "download", "fetch", src.URL, err))
	}
	rc.Track.Input = input

	coordinator := newCoordinator(cfg, g, runLogger, pipeline.NewStoreReporter(store, runLogger), progress)
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	run, err := coordinator.Start(workerCtx, rc)
	if err != nil {
		return fail(err)
	}

	if !cfg.Player.Enabled {
		if err := run.Wait(ctx); err != nil {
			<-run.Done()
			return err
		}
		printSummary(out, run.Snapshot(), rc.BufferPath)
		return nil
	}

	if err := pipeline.GateFor(run).Wait(ctx); err != nil {
		stopWorker()
		<-run.Done()
		return fail(err)
	}
	if err := run.Attach(ctx); err != nil {
		if run.State() == pipeline.StateError {
			// The worker failed after the gate opened and already recorded why.
			<-run.Done()
			return run.Err()
		}
		stopWorker()
		<-run.Done()
		return fail(services.Wrap(services.ErrFatalSetup, "separate", "attach player", "", err))
	}
	progress.Started(ctx, run.Snapshot())

	reader, err := tail.Open(rc.BufferPath, run,
		tail.WithSize(run.Buffered),
		tail.WithChanged(run.Changed),
		tail.WithPollInterval(rc.PollInterval),
		tail.WithLogger(runLogger),
	)
	if err != nil {
		stopWorker()
		<-run.Done()
		return fail(services.Wrap(services.ErrFatalSetup, "separate", "open buffer", "", err))
	}
	defer reader.Close()

	title := opts.title
	if title == "" {
		title = fmt.Sprintf("walker-yt: %s (%s)", src.TrackID, component.Label())
	}
	playErr := player.New(cfg, g, runLogger).Play(ctx, reader, title)

	quitEarly := false
	select {
	case <-run.Done():
	default:
		// The listener left before the worker finished.
		runLogger.Info("player exited before separation finished; stopping worker",
			logging.String(logging.FieldEventType, "player_exited_early"),
			logging.Int64("offset", reader.Offset()),
		)
		quitEarly = true
		stopWorker()
		<-run.Done()
	}

	if playErr != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(services.Wrap(services.ErrExternalTool, "player", "play", "", playErr))
	}
	if !quitEarly {
		// A worker failure after playback started ends the stream early but
		// cleanly; the run history already holds the cause.
		return run.Err()
	}
	return nil
}

// checkReady fails fast when a required tool is missing or a working
// directory is unusable.
func checkReady(ctx context.Context, cfg *config.Config) error {
	if missing := preflight.MissingRequired(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "dependencies", "missing "+strings.Join(missing, ", "), nil)
	}
	if blocking := preflight.Blocking(preflight.RunAll(ctx, cfg)); len(blocking) > 0 {
		details := make([]string, 0, len(blocking))
		for _, r := range blocking {
			details = append(details, r.Name+": "+r.Detail)
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "checks", strings.Join(details, "; "), nil)
	}
	return nil
}

func newCoordinator(cfg *config.Config, launcher *guard.Guard, logger *slog.Logger, reporters ...pipeline.Reporter) *pipeline.Coordinator {
	ffprobe := deps.ResolveFFprobe(cfg.Tools.FFprobe, cfg.Tools.FFmpeg)
	splitter := segment.NewSplitter(cfg.Tools.FFmpeg, ffprobe, launcher, logger)
	separator := separation.New(cfg.Tools.Demucs, cfg.Separation, launcher, logger)
	ffmpeg := pcm.NewFFmpegDecoder(cfg.Tools.FFmpeg)
	ffmpeg.Launcher = launcher
	return pipeline.NewCoordinator(splitter, separator, pcm.NewWAVDecoder(ffmpeg), logger, reporters...)
}

func printSummary(out io.Writer, snap pipeline.Snapshot, bufferPath string) {
	fmt.Fprintf(out, "Separated %d segments (%s) · %s buffered\n",
		snap.SegmentsTotal, snap.Component.Label(), pcm.Stream.Duration(snap.BufferedBytes).Round(100*time.Millisecond))
	if n := len(snap.Degraded); n > 0 {
		indexes := make([]string, 0, n)
		for _, d := range snap.Degraded {
			indexes = append(indexes, fmt.Sprint(d.Index))
		}
		fmt.Fprintf(out, "Skipped %d segment(s): %s\n", n, strings.Join(indexes, ", "))
	}
	fmt.Fprintf(out, "Buffer: %s\n", bufferPath)
}
