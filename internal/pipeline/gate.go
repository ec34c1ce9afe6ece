package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"walkeryt/internal/logging"
	"walkeryt/internal/services"
)

// Producer is the worker a Gate watches.
type Producer interface {
	Done() <-chan struct{}
	Err() error
}

// SizeFunc reports how many playable bytes the buffer holds.
type SizeFunc func() (int64, error)

// FileSize stats path. A missing file counts as empty.
func FileSize(path string) SizeFunc {
	return func() (int64, error) {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return 0, nil
			}
			return 0, err
		}
		return info.Size(), nil
	}
}

// Gate blocks until the buffer is playable.
type Gate struct {
	path      string
	size      SizeFunc
	threshold int64
	interval  time.Duration
	timeout   time.Duration
	producer  Producer
	logger    *slog.Logger
	used      atomic.Bool
}

// NewGate watches path with the given thresholds. size defaults to the
// file's size on disk.
func NewGate(path string, size SizeFunc, threshold int64, interval, timeout time.Duration, producer Producer, logger *slog.Logger) *Gate {
	if size == nil {
		size = FileSize(path)
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Gate{
		path:      path,
		size:      size,
		threshold: threshold,
		interval:  interval,
		timeout:   timeout,
		producer:  producer,
		logger:    logging.NewComponentLogger(logger, "gate"),
	}
}

// GateFor builds the gate for a run, bounded by the writer's durable size.
func GateFor(run *Run) *Gate {
	rc := run.Context()
	size := func() (int64, error) { return run.Buffered(), nil }
	return NewGate(rc.BufferPath, size, rc.ReadyThreshold, rc.PollInterval, rc.ReadyTimeout, run, rc.Logger)
}

// Wait returns nil once the buffer holds at least the threshold,
// services.ErrProducerDied when the producer exits first, or
// services.ErrTimeout when the deadline passes. A Gate can be waited on once.
func (g *Gate) Wait(ctx context.Context) error {
	if !g.used.CompareAndSwap(false, true) {
		return errors.New("readiness gate already used")
	}
	started := time.Now()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher, err := fsnotify.NewWatcher(); err != nil {
		g.logger.Debug("fsnotify unavailable; polling only", logging.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(g.path); err != nil {
			g.logger.Debug("buffer watch failed; polling only", logging.Error(err))
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	var deadline <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	done := g.producer.Done()

	for {
		size, err := g.size()
		if err != nil {
			return fmt.Errorf("read buffer size: %w", err)
		}
		if size >= g.threshold {
			g.logger.Info("buffer playable",
				logging.String(logging.FieldEventType, "gate_ready"),
				logging.Int64("buffered_bytes", size),
				logging.Duration("waited", time.Since(started)),
			)
			return nil
		}
		if done == nil {
			return g.producerDied(size)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: buffer held %d of %d bytes after %s", services.ErrTimeout, size, g.threshold, g.timeout)
		case <-done:
			// Re-check once: the producer may have crossed the threshold
			// right before exiting.
			done = nil
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
		}
	}
}

func (g *Gate) producerDied(size int64) error {
	cause := g.producer.Err()
	if cause == nil {
		cause = fmt.Errorf("producer finished with %d of %d bytes", size, g.threshold)
	}
	if errors.Is(cause, services.ErrProducerDied) {
		return cause
	}
	return fmt.Errorf("%w: %w", services.ErrProducerDied, cause)
}
