package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"walkeryt/internal/logging"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("tail reader closed")

// Producer signals when the buffer stops growing.
type Producer interface {
	Done() <-chan struct{}
}

// Option configures a Reader.
type Option func(*Reader)

// WithSize bounds reads by a durable byte count instead of the file size.
func WithSize(size func() int64) Option {
	return func(r *Reader) {
		if size != nil {
			r.size = func() (int64, error) { return size(), nil }
		}
	}
}

// WithChanged supplies an append notification channel. The function is
// called again after every wake-up.
func WithChanged(changed func() <-chan struct{}) Option {
	return func(r *Reader) {
		r.changed = changed
	}
}

// WithPollInterval sets the fallback poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithOffset starts reading at n instead of the beginning of the file.
func WithOffset(n int64) Option {
	return func(r *Reader) {
		if n > 0 {
			r.offset = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logging.NewComponentLogger(logger, "tail")
	}
}

// Reader streams a file that another goroutine or process appends to.
type Reader struct {
	path     string
	file     *os.File
	producer Producer
	size     func() (int64, error)
	changed  func() <-chan struct{}
	interval time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu     sync.Mutex
	offset int64

	closeOnce sync.Once
	closed    chan struct{}
}

// Open starts reading path from the beginning, or from WithOffset.
func Open(path string, producer Producer, opts ...Option) (*Reader, error) {
	if producer == nil {
		return nil, errors.New("tail: producer is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buffer: %w", err)
	}
	r := &Reader{
		path:     path,
		file:     file,
		producer: producer,
		interval: 250 * time.Millisecond,
		logger:   logging.NewNop(),
		closed:   make(chan struct{}),
	}
	r.size = r.statSize
	for _, opt := range opts {
		opt(r)
	}
	if r.changed == nil {
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(path); err == nil {
				r.watcher = watcher
			} else {
				_ = watcher.Close()
				r.logger.Debug("buffer watch failed; polling only", logging.Error(err))
			}
		}
	}
	return r, nil
}

// Offset returns the number of bytes delivered so far.
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// Read blocks until at least one byte is available, then returns up to
// len(p) bytes. It returns io.EOF only after the producer finished and every
// byte was delivered.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		select {
		case <-r.closed:
			return 0, ErrClosed
		default:
		}

		// Capture the producer state before sizing so a final append that
		// races with completion is never missed.
		finished := isDone(r.producer.Done())
		var changed <-chan struct{}
		if r.changed != nil {
			changed = r.changed()
		}

		available, err := r.size()
		if err != nil {
			return 0, err
		}
		if available > r.offset {
			want := min(int64(len(p)), available-r.offset)
			n, err := r.file.ReadAt(p[:want], r.offset)
			r.offset += int64(n)
			if n > 0 {
				return n, nil
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("read buffer: %w", err)
			}
		}
		if finished {
			return 0, io.EOF
		}
		if err := r.wait(changed); err != nil {
			return 0, err
		}
	}
}

func (r *Reader) wait(changed <-chan struct{}) error {
	var events <-chan fsnotify.Event
	if r.watcher != nil {
		events = r.watcher.Events
	}
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	select {
	case <-r.closed:
		return ErrClosed
	case <-r.producer.Done():
	case <-changed:
	case _, ok := <-events:
		if !ok {
			r.watcher = nil
		}
	case <-timer.C:
	}
	return nil
}

// Close stops the reader. Blocked Reads return ErrClosed.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.watcher != nil {
			err = r.watcher.Close()
		}
		if closeErr := r.file.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

func (r *Reader) statSize() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat buffer: %w", err)
	}
	return info.Size(), nil
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// PollDone returns a channel closed once finished reports true, ctx ends, or
// finished fails. It backs Producer for buffers written by another process.
func PollDone(ctx context.Context, interval time.Duration, finished func(context.Context) (bool, error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			ok, err := finished(ctx)
			if ok || err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

// DoneChan adapts a channel to Producer.
type DoneChan <-chan struct{}

func (d DoneChan) Done() <-chan struct{} { return d }
