package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"walkeryt/internal/logging"
	"walkeryt/internal/pcm"
	"walkeryt/internal/segment"
	"walkeryt/internal/separation"
	"walkeryt/internal/services"
)

// Splitter cuts the input track into ordered segments.
type Splitter interface {
	Split(ctx context.Context, input, dir string, duration time.Duration) ([]segment.Segment, error)
}

// Separator isolates one component of a segment.
type Separator interface {
	Separate(ctx context.Context, seg segment.Segment, outDir string, component separation.Component, progress separation.ProgressFunc) (string, error)
}

// Coordinator drives split, separate, and append for a run.
type Coordinator struct {
	splitter  Splitter
	separator Separator
	decoder   pcm.Decoder
	reporters []Reporter
	logger    *slog.Logger
}

// NewCoordinator wires the pipeline stages.
func NewCoordinator(splitter Splitter, separator Separator, decoder pcm.Decoder, logger *slog.Logger, reporters ...Reporter) *Coordinator {
	return &Coordinator{
		splitter:  splitter,
		separator: separator,
		decoder:   decoder,
		reporters: reporters,
		logger:    logging.NewComponentLogger(logger, "coordinator"),
	}
}

// Start clears artifacts from any earlier run of the track, creates an empty
// buffer, and launches the worker. Errors returned here are setup failures;
// everything after is reported through the Run.
func (c *Coordinator) Start(ctx context.Context, rc *RunContext) (*Run, error) {
	if err := rc.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "start", "", err)
	}
	if err := rc.ClearArtifacts(); err != nil {
		return nil, services.Wrap(services.ErrFatalSetup, "pipeline", "clear artifacts", "", err)
	}
	writer, err := pcm.Create(rc.BufferPath, c.decoder)
	if err != nil {
		return nil, services.Wrap(services.ErrFatalSetup, "pipeline", "create buffer", "", err)
	}

	run := newRun(rc, c.reporters, writer.BytesWritten, writer.Changed)
	if err := run.transition(StateSplitting); err != nil {
		_ = writer.Close()
		return nil, err
	}
	logger := c.logger
	if rc.Logger != nil {
		logger = logging.NewComponentLogger(rc.Logger, "coordinator")
	}
	ctx = rc.Context(ctx)
	go c.work(ctx, run, writer, logger)
	return run, nil
}

func (c *Coordinator) work(ctx context.Context, run *Run, writer *pcm.Writer, logger *slog.Logger) {
	rc := run.Context()
	started := time.Now()
	defer close(run.done)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("buffer close failed", logging.Error(err))
		}
	}()
	defer func() {
		if recovered := recover(); recovered != nil {
			run.fail(fmt.Errorf("worker panic: %v", recovered))
		}
		snap := run.Snapshot()
		if snap.State == StateError {
			logging.ErrorWithContext(logger, "run failed", "run_failed",
				logging.Error(snap.Err),
				logging.Int("segments_completed", snap.SegmentsCompleted),
				logging.Int64("buffered_bytes", snap.BufferedBytes),
				logging.String(logging.FieldErrorHint, services.Diagnostic(snap.Err)),
			)
		} else {
			logger.Info("run finished",
				logging.String(logging.FieldEventType, "run_finished"),
				logging.Int("segments_completed", snap.SegmentsCompleted),
				logging.Int("segments_degraded", len(snap.Degraded)),
				logging.Int64("buffered_bytes", snap.BufferedBytes),
				logging.Duration("elapsed", time.Since(started)),
			)
		}
		run.report(ctx)
	}()

	run.report(ctx)
	splitCtx := services.WithStage(ctx, string(StateSplitting))
	segments, err := c.splitter.Split(splitCtx, rc.Track.Input, rc.SegmentsDir, rc.SegmentDuration)
	if err != nil {
		run.fail(services.Wrap(services.ErrFatalSetup, "splitting", "split track", "", err))
		return
	}
	run.setTotal(len(segments))
	logger.Info("separation started",
		logging.String(logging.FieldEventType, "separation_start"),
		logging.Int("segment_count", len(segments)),
		logging.String("component", string(rc.Component)),
	)

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			run.fail(err)
			return
		}
		segCtx := services.WithSegment(services.WithStage(ctx, string(StateSeparating)), seg.Index)
		segLogger := logger.With(logging.Int(logging.FieldSegment, seg.Index))
		run.beginSegment(seg.Index)
		run.report(segCtx)

		out, err := c.separator.Separate(segCtx, seg, rc.SeparatedDir, rc.Component, func(percent int) {
			if run.setModelPercent(percent) {
				run.report(segCtx)
			}
		})
		if err != nil {
			if errors.Is(err, separation.ErrNoOutput) {
				c.degrade(segCtx, run, seg, err, segLogger)
				continue
			}
			run.fail(services.Wrap(services.ErrExternalTool, "separating", fmt.Sprintf("segment %d", seg.Index), "", err))
			return
		}

		n, err := writer.Append(segCtx, out)
		if err != nil {
			if errors.Is(err, pcm.ErrDecode) {
				c.degrade(segCtx, run, seg, err, segLogger)
				continue
			}
			run.fail(fmt.Errorf("append segment %d: %w", seg.Index, err))
			return
		}
		if run.completeSegment() {
			segLogger.Info("buffer ready",
				logging.String(logging.FieldEventType, "buffer_ready"),
				logging.Int64("buffered_bytes", writer.BytesWritten()),
				logging.Duration("time_to_ready", time.Since(started)),
			)
		}
		segLogger.Debug("segment appended",
			logging.Int64("appended_bytes", n),
			logging.Int64("buffered_bytes", writer.BytesWritten()),
		)
		run.report(segCtx)
	}

	if err := run.finish(); err != nil {
		run.fail(err)
	}
}

func (c *Coordinator) degrade(ctx context.Context, run *Run, seg segment.Segment, cause error, logger *slog.Logger) {
	run.addDegraded(seg.Index, services.Diagnostic(cause))
	logging.WarnWithContext(logger, "segment skipped", "segment_degraded",
		logging.Alert("gap"),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "the stream will have a short gap here"),
		logging.String(logging.FieldImpact, "segment audio omitted from buffer"),
	)
	run.report(ctx)
}
