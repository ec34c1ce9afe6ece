package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	YtDlp      string `toml:"ytdlp"`
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	Demucs     string `toml:"demucs"`
	Player     string `toml:"player"`
	NotifySend string `toml:"notify_send"`
}

// Download contains configuration for fetching the source track.
type Download struct {
	Format      string `toml:"format"`
	URLTemplate string `toml:"url_template"`
}

// Separation contains configuration for the per-segment separation model.
type Separation struct {
	Model          string `toml:"model"`
	Device         string `toml:"device"`
	Threads        int    `toml:"threads"`
	MemoryLimitMiB int    `toml:"memory_limit_mib"`
	Nice           int    `toml:"nice"`
	// Keep selects the stem that is streamed: "vocals" or "instrumental".
	Keep string `toml:"keep"`
}

// Pipeline contains the chunking and readiness thresholds.
type Pipeline struct {
	SegmentSeconds      int   `toml:"segment_seconds"`
	ReadyThresholdBytes int64 `toml:"ready_threshold_bytes"`
	PollIntervalMS      int   `toml:"poll_interval_ms"`
	ReadyTimeoutSeconds int   `toml:"ready_timeout_seconds"`
	CleanupGraceMS      int   `toml:"cleanup_grace_ms"`
}

// Player contains configuration for the playback consumer.
type Player struct {
	Enabled      bool     `toml:"enabled"`
	CacheSeconds int      `toml:"cache_seconds"`
	ExtraArgs    []string `toml:"extra_args"`
}

// Notifications contains configuration for desktop and ntfy progress updates.
type Notifications struct {
	Desktop        bool   `toml:"desktop"`
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyServer     string `toml:"ntfy_server"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for walker-yt.
//
// Configuration sections by subsystem:
//   - Paths: cache, state, and log directories plus the stream server bind address
//   - Tools: external binaries (yt-dlp, ffmpeg, ffprobe, demucs, mpv, notify-send)
//   - Download: source format selection
//   - Separation: model, resource caps, and the default kept stem
//   - Pipeline: segment length and readiness gate thresholds
//   - Player: playback consumer settings
//   - Notifications: desktop and ntfy progress updates
//   - Logging: log format, level, rotation, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Download      Download      `toml:"download"`
	Separation    Separation    `toml:"separation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Player        Player        `toml:"player"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/walker-yt/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads KEY=value pairs from a .env file next to the config.
// Variables already present in the environment win.
func loadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	info, err := os.Stat(envPath)
	if err != nil || info.IsDir() {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("walker-yt.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TrackDir returns the per-track working directory under the cache root.
func (c *Config) TrackDir(trackID string) string {
	return filepath.Join(c.Paths.CacheDir, "proc_"+trackID)
}

// LockPath returns the instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "walker-yt.lock")
}

// PIDPath returns the file holding the active instance's PID.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "walker-yt.pid")
}

// DatabasePath returns the run history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LogPath returns the primary log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "walker-yt.log")
}

// SegmentDuration returns the nominal segment length.
func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.Pipeline.SegmentSeconds) * time.Second
}

// PollInterval returns the readiness and tail polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pipeline.PollIntervalMS) * time.Millisecond
}

// ReadyTimeout returns how long the readiness gate waits for the first chunk.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Pipeline.ReadyTimeoutSeconds) * time.Second
}

// CleanupGrace returns how long terminated processes get before SIGKILL.
func (c *Config) CleanupGrace() time.Duration {
	return time.Duration(c.Pipeline.CleanupGraceMS) * time.Millisecond
}

// SourceURL expands a bare track identifier into a fetchable URL. Values that
// already look like URLs are returned unchanged.
func (c *Config) SourceURL(trackID string) string {
	trimmed := strings.TrimSpace(trackID)
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	return fmt.Sprintf(c.Download.URLTemplate, trimmed)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
