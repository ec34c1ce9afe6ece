package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
	"walkeryt/internal/separation"
	"walkeryt/internal/services"
)

// Track is one source and its downloaded audio.
type Track struct {
	ID        string
	SourceURL string
	// Input is the downloaded container. It is set once the download
	// completes and never changes afterwards.
	Input string
}

// RunContext carries everything one run needs. It replaces ambient
// directories and globals: every component receives it explicitly.
type RunContext struct {
	RunID     string
	Track     Track
	Component separation.Component

	Dir          string
	SegmentsDir  string
	SeparatedDir string
	BufferPath   string

	SegmentDuration time.Duration
	ReadyThreshold  int64
	PollInterval    time.Duration
	ReadyTimeout    time.Duration

	Logger *slog.Logger
}

// NewRunContext lays out a run under the track's cache directory.
func NewRunContext(cfg *config.Config, track Track, component separation.Component, logger *slog.Logger) *RunContext {
	dir := cfg.TrackDir(track.ID)
	runID := uuid.NewString()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunContext{
		RunID:           runID,
		Track:           track,
		Component:       component,
		Dir:             dir,
		SegmentsDir:     filepath.Join(dir, "segments"),
		SeparatedDir:    filepath.Join(dir, "separated"),
		BufferPath:      filepath.Join(dir, BufferName),
		SegmentDuration: cfg.SegmentDuration(),
		ReadyThreshold:  cfg.Pipeline.ReadyThresholdBytes,
		PollInterval:    cfg.PollInterval(),
		ReadyTimeout:    cfg.ReadyTimeout(),
		Logger: logger.With(
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldTrackID, track.ID),
		),
	}
}

// BufferName is the file name of the growing sample buffer.
const BufferName = "buffer.pcm"

// Context decorates ctx with the run and track identifiers.
func (rc *RunContext) Context(ctx context.Context) context.Context {
	ctx = services.WithRunID(ctx, rc.RunID)
	return services.WithTrackID(ctx, rc.Track.ID)
}

// ClearArtifacts removes segments, separated stems, and the buffer left by an
// earlier run for the same track. The downloaded input is kept.
func (rc *RunContext) ClearArtifacts() error {
	for _, dir := range []string{rc.SegmentsDir, rc.SeparatedDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s: %w", filepath.Base(dir), err)
		}
	}
	if err := os.Remove(rc.BufferPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove buffer: %w", err)
	}
	return nil
}

func (rc *RunContext) validate() error {
	switch {
	case rc == nil:
		return errors.New("run context is nil")
	case rc.Track.Input == "":
		return errors.New("track input is not downloaded")
	case rc.SegmentDuration <= 0:
		return errors.New("segment duration must be positive")
	case rc.ReadyThreshold <= 0:
		return errors.New("ready threshold must be positive")
	}
	return nil
}
