package pcm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("buffer writer closed")
	// ErrDecode marks a source that could not be turned into samples. The
	// buffer is untouched when it is returned.
	ErrDecode = errors.New("decode failed")
)

// Writer appends decoded segments to the run's buffer file. Appends are
// serialized; each one is decoded fully in memory, written, and fsynced
// before BytesWritten advances.
type Writer struct {
	path    string
	format  Format
	decoder Decoder

	mu      sync.Mutex
	file    *os.File
	written atomic.Int64
	closed  bool
	notify  chan struct{}
}

// Create truncates or creates the buffer at path. Any bytes from a previous
// run are discarded.
func Create(path string, decoder Decoder) (*Writer, error) {
	if decoder == nil {
		return nil, errors.New("pcm writer: decoder is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure buffer directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove previous buffer: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}
	return &Writer{
		path:    path,
		format:  Stream,
		decoder: decoder,
		file:    file,
		notify:  make(chan struct{}),
	}, nil
}

// Path returns the buffer file location.
func (w *Writer) Path() string { return w.path }

// Format returns the sample format of the buffer.
func (w *Writer) Format() Format { return w.format }

// BytesWritten returns the number of durable bytes in the buffer.
func (w *Writer) BytesWritten() int64 { return w.written.Load() }

// Changed returns a channel that is closed on the next successful append.
// After Close it returns an already closed channel. Callers re-fetch it after
// each wake-up.
func (w *Writer) Changed() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notify
}

// Append decodes src and appends its samples. It returns the number of bytes
// added. Partial decodes are discarded so the buffer only ever grows by whole
// segments.
func (w *Writer) Append(ctx context.Context, src string) (int64, error) {
	var decoded bytes.Buffer
	if err := w.decoder.Decode(ctx, src, &decoded); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrDecode, src, err)
	}
	data := decoded.Bytes()
	data = data[:w.format.Align(int64(len(data)))]
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: %s: no samples", ErrDecode, src)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	if _, err := w.file.Write(data); err != nil {
		return 0, fmt.Errorf("append to buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync buffer: %w", err)
	}
	n := int64(len(data))
	w.written.Add(n)
	close(w.notify)
	w.notify = make(chan struct{})
	return n, nil
}

// Close releases the file handle. The buffer stays on disk for readers.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.notify)
	return w.file.Close()
}
