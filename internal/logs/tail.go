package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"walkeryt/internal/tail"
)

const maxLineBytes = 1024 * 1024

// LastLines returns up to limit trailing lines of path and the offset just
// past them. A missing file yields no lines and offset 0.
func LastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, info.Size(), nil
}

// Follow calls emit for every complete line appended to path after offset
// until ctx ends. The file must exist.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(line string)) error {
	reader, err := tail.Open(path, tail.DoneChan(ctx.Done()),
		tail.WithOffset(offset),
		tail.WithPollInterval(poll),
	)
	if err != nil {
		return err
	}
	defer reader.Close()

	buffered := bufio.NewReaderSize(reader, 64*1024)
	var partial strings.Builder
	for {
		chunk, err := buffered.ReadString('\n')
		partial.WriteString(chunk)
		if strings.HasSuffix(chunk, "\n") {
			emit(strings.TrimRight(partial.String(), "\r\n"))
			partial.Reset()
		} else if partial.Len() > maxLineBytes {
			emit(partial.String())
			partial.Reset()
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, tail.ErrClosed):
			return nil
		default:
			return err
		}
	}
}
