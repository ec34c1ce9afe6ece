package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
)

// InputBase is the file name stem of a track's cached download.
const InputBase = "input"

// Progress reports a download's completion between 0 and 100.
type Progress func(percent float64)

// fetchFunc runs the actual download. It returns the written path when known.
type fetchFunc func(ctx context.Context, url, outputTemplate string, progress Progress) (string, error)

// Downloader fetches track audio into a track directory.
type Downloader struct {
	binary string
	format string
	logger *slog.Logger
	fetch  fetchFunc
}

// Option configures the downloader.
type Option func(*Downloader)

// WithFetchFunc replaces the yt-dlp invocation (primarily for tests).
func WithFetchFunc(fn func(ctx context.Context, url, outputTemplate string, progress Progress) (string, error)) Option {
	return func(d *Downloader) {
		if fn != nil {
			d.fetch = fn
		}
	}
}

// New constructs a downloader from config.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Downloader {
	d := &Downloader{
		binary: cfg.Tools.YtDlp,
		format: cfg.Download.Format,
		logger: logging.NewComponentLogger(logger, "download"),
	}
	d.fetch = d.runYtDlp
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cached returns the complete download in dir, if any.
func Cached(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, InputBase+".*"))
	if err != nil {
		return "", false
	}
	for _, match := range matches {
		if isPartial(match) {
			continue
		}
		if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return match, true
		}
	}
	return "", false
}

// Fetch downloads url into dir unless a complete copy is already cached.
func (d *Downloader) Fetch(ctx context.Context, url, dir string, progress Progress) (string, error) {
	if path, ok := Cached(dir); ok {
		d.logger.Info("using cached download",
			logging.String(logging.FieldEventType, "download_cached"),
			logging.String("path", path),
		)
		if progress != nil {
			progress(100)
		}
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create track directory: %w", err)
	}

	started := time.Now()
	template := filepath.Join(dir, InputBase+".%(ext)s")
	path, err := d.fetch(ctx, url, template, progress)
	if err != nil {
		removePartials(dir)
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if path == "" || !fileExists(path) {
		cached, ok := Cached(dir)
		if !ok {
			removePartials(dir)
			return "", fmt.Errorf("download %s: yt-dlp reported success but wrote no file", url)
		}
		path = cached
	}
	d.logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String("path", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return path, nil
}

func (d *Downloader) runYtDlp(ctx context.Context, url, outputTemplate string, progress Progress) (string, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		NoPlaylist().
		Format(d.format).
		Output(outputTemplate)
	if binary := strings.TrimSpace(d.binary); binary != "" {
		dl.SetExecutable(binary)
	}
	if progress != nil {
		dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				progress(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100)
			}
		})
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	if result == nil {
		return "", nil
	}
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 || info[0].Filename == nil {
		return "", nil
	}
	return *info[0].Filename, nil
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".tmp"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), ".part-")
}

// removePartials deletes every input.* file left by a failed download.
func removePartials(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, InputBase+".*"))
	if err != nil {
		return
	}
	for _, match := range matches {
		_ = os.Remove(match)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
