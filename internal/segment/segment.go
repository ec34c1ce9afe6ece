package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"walkeryt/internal/logging"
	"walkeryt/internal/media/ffprobe"
	"walkeryt/internal/procs"
)

// NamePrefix is shared by every slice file.
const NamePrefix = "segment_"

// indexFormat pads slice numbers wide enough that name order stays time
// order for any realistic track length.
const indexFormat = "%06d"

// Segment is one slice of the source track.
type Segment struct {
	Index int
	Path  string
}

// Name returns the slice file name without extension.
func (s Segment) Name() string {
	return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

// Splitter produces ordered slices of an input track.
type Splitter struct {
	FFmpeg   string
	FFprobe  string
	Launcher procs.Launcher
	Logger   *slog.Logger
}

// NewSplitter wires a splitter to the configured binaries.
func NewSplitter(ffmpegBinary, ffprobeBinary string, launcher procs.Launcher, logger *slog.Logger) *Splitter {
	return &Splitter{
		FFmpeg:   ffmpegBinary,
		FFprobe:  ffprobeBinary,
		Launcher: launcher,
		Logger:   logging.NewComponentLogger(logger, "splitter"),
	}
}

// Split validates input, clears dir, and cuts input into slices of the given
// duration. The returned slices are ordered by index and cover the whole
// track.
func (s *Splitter) Split(ctx context.Context, input, dir string, duration time.Duration) ([]Segment, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %s", duration)
	}
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, fmt.Errorf("input %s is not a usable file", input)
	}
	if _, err := ffprobe.RequireAudio(ctx, s.FFprobe, input); err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}

	if err := Clear(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(input))
	if ext == "" {
		ext = ".mka"
	}
	pattern := filepath.Join(dir, NamePrefix+indexFormat+ext)
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", input,
		"-map", "0:a:0",
		"-f", "segment",
		"-segment_time", formatSeconds(duration),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}
	binary := strings.TrimSpace(s.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	started := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...)
	if err := procs.RunCaptured(ctx, s.Launcher, cmd, procs.RoleSplitter); err != nil {
		return nil, fmt.Errorf("split %s: %w", filepath.Base(input), err)
	}

	segments, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("split %s: no segments produced", filepath.Base(input))
	}
	if s.Logger != nil {
		s.Logger.Info("track split",
			logging.String(logging.FieldEventType, "split_complete"),
			logging.Int("segment_count", len(segments)),
			logging.Duration("segment_duration", duration),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return segments, nil
}

// List returns the slices in dir ordered by the number in their name. A
// missing directory yields no slices. Files whose name carries no number are
// ignored.
func List(dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read segment directory: %w", err)
	}
	type numbered struct {
		number int
		name   string
	}
	found := make([]numbered, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		number, ok := sliceNumber(entry.Name())
		if !ok {
			continue
		}
		found = append(found, numbered{number: number, name: entry.Name()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].number < found[j].number })
	segments := make([]Segment, 0, len(found))
	for i, f := range found {
		segments = append(segments, Segment{Index: i, Path: filepath.Join(dir, f.name)})
	}
	return segments, nil
}

// sliceNumber parses the number from a name like segment_000012.m4a.
func sliceNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, NamePrefix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, NamePrefix), filepath.Ext(name))
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Clear removes dir and everything in it.
func Clear(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear segment directory: %w", err)
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
