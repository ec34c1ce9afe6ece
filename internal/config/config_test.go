package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"walkeryt/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "walker-yt")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "walker-yt")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Pipeline.ReadyThresholdBytes != 500000 {
		t.Fatalf("unexpected ready threshold: %d", cfg.Pipeline.ReadyThresholdBytes)
	}
	if cfg.PollInterval() != time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.ReadyTimeout() != 120*time.Second {
		t.Fatalf("unexpected ready timeout: %s", cfg.ReadyTimeout())
	}
	if cfg.SegmentDuration() != 30*time.Second {
		t.Fatalf("unexpected segment duration: %s", cfg.SegmentDuration())
	}
	if cfg.Separation.Model != "htdemucs" {
		t.Fatalf("unexpected model: %q", cfg.Separation.Model)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadHonoursXDGCacheHome(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if want := filepath.Join(xdg, "walker-yt"); cfg.Paths.CacheDir != want {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, want)
	}
	if got := cfg.TrackDir("abc123"); got != filepath.Join(xdg, "walker-yt", "proc_abc123") {
		t.Fatalf("unexpected track dir: %q", got)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
cache_dir = "~/cache"

[separation]
keep = "Music"
threads = 4

[pipeline]
segment_seconds = 15
ready_threshold_bytes = 1000000

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config file to be found at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, "cache") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Separation.Keep != "instrumental" {
		t.Fatalf("expected music alias to normalize to instrumental, got %q", cfg.Separation.Keep)
	}
	if cfg.Separation.Threads != 4 {
		t.Fatalf("unexpected threads: %d", cfg.Separation.Threads)
	}
	if cfg.Pipeline.SegmentSeconds != 15 || cfg.Pipeline.ReadyThresholdBytes != 1000000 {
		t.Fatalf("unexpected pipeline section: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.PollIntervalMS != 1000 {
		t.Fatalf("expected unset values to keep defaults, got poll %d", cfg.Pipeline.PollIntervalMS)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WALKER_YT_NTFY_TOPIC", "")
	os.Unsetenv("WALKER_YT_NTFY_TOPIC")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[notifications]\ndesktop = false\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WALKER_YT_NTFY_TOPIC=karaoke-night\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "karaoke-night" {
		t.Fatalf("expected ntfy topic from .env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Notifications.Desktop {
		t.Fatal("expected desktop notifications disabled by config")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"zero segment", func(c *config.Config) { c.Pipeline.SegmentSeconds = 0 }, "pipeline.segment_seconds"},
		{"zero threshold", func(c *config.Config) { c.Pipeline.ReadyThresholdBytes = 0 }, "pipeline.ready_threshold_bytes"},
		{"poll longer than timeout", func(c *config.Config) { c.Pipeline.PollIntervalMS = 200000 }, "pipeline.poll_interval_ms"},
		{"unknown keep", func(c *config.Config) { c.Separation.Keep = "drums" }, "separation.keep"},
		{"zero threads", func(c *config.Config) { c.Separation.Threads = 0 }, "separation.threads"},
		{"nice out of range", func(c *config.Config) { c.Separation.Nice = 25 }, "separation.nice"},
		{"negative cache", func(c *config.Config) { c.Player.CacheSeconds = -1 }, "player.cache_seconds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("unexpected error: got %q want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeKeepAliases(t *testing.T) {
	cases := map[string]string{
		"vocals":    "vocals",
		" Vocal ":   "vocals",
		"music":     "instrumental",
		"no_vocals": "instrumental",
		"karaoke":   "instrumental",
		"drums":     "drums",
	}
	for input, want := range cases {
		if got := config.NormalizeKeep(input); got != want {
			t.Fatalf("NormalizeKeep(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSourceURL(t *testing.T) {
	cfg := config.Default()
	if got := cfg.SourceURL("abc"); got != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected url: %q", got)
	}
	if got := cfg.SourceURL("https://example.com/v/1"); got != "https://example.com/v/1" {
		t.Fatalf("expected url passthrough, got %q", got)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Separation.Keep != "instrumental" {
		t.Fatalf("unexpected sample keep: %q", cfg.Separation.Keep)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}
