package streamhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"walkeryt/internal/config"
	"walkeryt/internal/pipeline"
	"walkeryt/internal/runstore"
	"walkeryt/internal/tail"
)

// ErrNoRun is returned when a track has no recorded run.
var ErrNoRun = errors.New("no run recorded for track")

// Follower tracks a run recorded by another process.
type Follower struct {
	Run      *runstore.Run
	buffered atomic.Int64
	done     <-chan struct{}
}

// Done is closed once the run reaches a terminal status, the store becomes
// unreadable, or ctx ends.
func (f *Follower) Done() <-chan struct{} { return f.done }

// Buffered returns the durable byte count last recorded for the run.
func (f *Follower) Buffered() int64 { return f.buffered.Load() }

// Follow starts polling the latest run for trackID.
func Follow(ctx context.Context, store *runstore.Store, trackID string, interval time.Duration) (*Follower, error) {
	run, err := store.LatestForTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, trackID)
	}
	f := &Follower{Run: run}
	f.buffered.Store(run.BufferedBytes)
	if run.Status.IsTerminal() {
		done := make(chan struct{})
		close(done)
		f.done = done
		return f, nil
	}
	f.done = tail.PollDone(ctx, interval, func(ctx context.Context) (bool, error) {
		current, err := store.GetRun(ctx, run.ID)
		if err != nil {
			return false, err
		}
		if current == nil {
			return true, nil
		}
		f.buffered.Store(current.BufferedBytes)
		return current.Status.IsTerminal(), nil
	})
	return f, nil
}

// OpenStream follows the latest run for trackID and opens a reader over its
// buffer. The reader ends when the run does.
func OpenStream(ctx context.Context, cfg *config.Config, store *runstore.Store, trackID string, logger *slog.Logger) (*tail.Reader, *Follower, error) {
	follower, err := Follow(ctx, store, trackID, cfg.PollInterval())
	if err != nil {
		return nil, nil, err
	}
	path := follower.Run.BufferPath
	if path == "" {
		path = BufferPath(cfg, trackID)
	}
	reader, err := tail.Open(path, follower,
		tail.WithSize(follower.Buffered),
		tail.WithPollInterval(cfg.PollInterval()),
		tail.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return reader, follower, nil
}

// BufferPath returns the default buffer location for a track.
func BufferPath(cfg *config.Config, trackID string) string {
	return filepath.Join(cfg.TrackDir(trackID), pipeline.BufferName)
}
