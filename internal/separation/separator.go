package separation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
	"walkeryt/internal/procs"
	"walkeryt/internal/segment"
)

// ErrNoOutput reports a model run that left no stem for the segment.
var ErrNoOutput = errors.New("separation produced no output")

// ProgressFunc receives the model's own percentage for the current segment.
type ProgressFunc func(percent int)

// Separator runs demucs on one segment at a time.
type Separator struct {
	Binary   string
	Model    string
	Device   string
	Limits   Limits
	Launcher procs.Launcher
	Logger   *slog.Logger
}

// New builds a separator from the separation config.
func New(binary string, cfg config.Separation, launcher procs.Launcher, logger *slog.Logger) *Separator {
	return &Separator{
		Binary: binary,
		Model:  cfg.Model,
		Device: cfg.Device,
		Limits: Limits{
			Threads:        cfg.Threads,
			MemoryLimitMiB: cfg.MemoryLimitMiB,
			Nice:           cfg.Nice,
		},
		Launcher: launcher,
		Logger:   logging.NewComponentLogger(logger, "separator"),
	}
}

// OutputPath is where demucs writes stem for input under outDir.
func (s *Separator) OutputPath(outDir, input, stem string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, s.model(), base, stem)
}

// Separate isolates component from seg, writing under outDir. It returns the
// kept stem's path. A failed or empty run returns an error wrapping
// ErrNoOutput; context cancellation is returned as is.
func (s *Separator) Separate(ctx context.Context, seg segment.Segment, outDir string, component Component, progress ProgressFunc) (string, error) {
	kept := s.OutputPath(outDir, seg.Path, component.Stem())
	stemDir := filepath.Dir(kept)
	if err := os.RemoveAll(stemDir); err != nil {
		return "", fmt.Errorf("clear stem directory: %w", err)
	}

	args := []string{
		"-n", s.model(),
		"--two-stems=vocals",
		"-o", outDir,
	}
	if device := strings.TrimSpace(s.Device); device != "" {
		args = append(args, "-d", device)
	}
	if s.Limits.Threads > 0 {
		args = append(args, "-j", strconv.Itoa(s.Limits.Threads))
	}
	args = append(args, seg.Path)

	binary := strings.TrimSpace(s.Binary)
	if binary == "" {
		binary = "demucs"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), s.Limits.Env()...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	started := time.Now()
	wait, err := procs.Or(s.Launcher).Start(ctx, cmd, procs.RoleSeparator)
	if err != nil {
		return "", fmt.Errorf("start demucs: %w", err)
	}
	if err := s.Limits.Apply(cmd.Process.Pid); err != nil {
		logging.WarnWithContext(s.Logger, "resource caps not applied", "separation_limits",
			logging.Int(logging.FieldSegment, seg.Index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "separation runs without memory or priority caps"),
		)
	}
	tail := readProgress(stderr, s.sampled(seg.Index, progress))
	runErr := wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runErr != nil {
		if detail := procs.Tail(tail, 400); detail != "" {
			return "", fmt.Errorf("%w: segment %d: demucs: %w: %s", ErrNoOutput, seg.Index, runErr, detail)
		}
		return "", fmt.Errorf("%w: segment %d: demucs: %w", ErrNoOutput, seg.Index, runErr)
	}

	info, err := os.Stat(kept)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: segment %d: missing %s", ErrNoOutput, seg.Index, component.Stem())
	}
	_ = os.Remove(filepath.Join(stemDir, component.Complement()))

	if s.Logger != nil {
		s.Logger.Debug("segment separated",
			logging.Int(logging.FieldSegment, seg.Index),
			logging.String("stem", component.Stem()),
			logging.Int64("output_bytes", info.Size()),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return kept, nil
}

// progressLogBucket is the percent step between debug progress lines.
const progressLogBucket = 25

// sampled forwards every percent to progress and logs one debug line per
// bucket crossed.
func (s *Separator) sampled(index int, progress ProgressFunc) ProgressFunc {
	sampler := logging.NewProgressSampler(progressLogBucket)
	return func(percent int) {
		if s.Logger != nil && sampler.ShouldLog(float64(percent), "") {
			s.Logger.Debug("separation progress",
				logging.String(logging.FieldEventType, "separation_progress"),
				logging.Int(logging.FieldSegment, index),
				logging.Int("percent", percent),
			)
		}
		if progress != nil {
			progress(percent)
		}
	}
}

func (s *Separator) model() string {
	if model := strings.TrimSpace(s.Model); model != "" {
		return model
	}
	return "htdemucs"
}

var percentPattern = regexp.MustCompile(`(\d{1,3})%`)

// readProgress consumes demucs' stderr, reporting tqdm percentages as they
// change. It returns the last non-progress lines for error reporting.
func readProgress(r io.Reader, progress ProgressFunc) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(scanCarriageReturns)

	last := -1
	var tail bytes.Buffer
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if match := percentPattern.FindStringSubmatch(line); match != nil {
			percent, err := strconv.Atoi(match[1])
			if err == nil && percent <= 100 && percent != last {
				last = percent
				if progress != nil {
					progress(percent)
				}
			}
			continue
		}
		if tail.Len() > 4096 {
			tail.Reset()
		}
		tail.WriteString(line)
		tail.WriteByte('\n')
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
	return tail.String()
}

// scanCarriageReturns splits on \r or \n, which is how tqdm redraws lines.
func scanCarriageReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
