package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"walkeryt/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Polling is shortened so readiness and tail tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Pipeline.PollIntervalMS = 20
	cfgVal.Pipeline.CleanupGraceMS = 200
	cfgVal.Notifications.Desktop = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPipeline lets a test adjust chunking and readiness thresholds.
func WithPipeline(fn func(*config.Pipeline)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Pipeline)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every external tool walker-yt
// shells out to is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg", "ffprobe", "demucs", "mpv", "notify-send"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithToolScript installs a shell script as the named tool and points the
// config at it. Supported names match the [tools] config keys.
func WithToolScript(tool, body string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "bin", tool)
		WriteScript(b.t, path, body)
		switch tool {
		case "ytdlp":
			b.cfg.Tools.YtDlp = path
		case "ffmpeg":
			b.cfg.Tools.FFmpeg = path
		case "ffprobe":
			b.cfg.Tools.FFprobe = path
		case "demucs":
			b.cfg.Tools.Demucs = path
		case "player":
			b.cfg.Tools.Player = path
		case "notify_send":
			b.cfg.Tools.NotifySend = path
		default:
			b.t.Fatalf("unknown tool %q", tool)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
