package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultStateDir       = "~/.local/share/walker-yt"
	defaultLogDir         = "~/.local/share/walker-yt/logs"
	defaultAPIBind        = "127.0.0.1:7488"
	defaultYtDlpBinary    = "yt-dlp"
	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultDemucsBinary   = "demucs"
	defaultPlayerBinary   = "mpv"
	defaultNotifyBinary   = "notify-send"
	defaultDownloadFormat = "bestaudio[ext=m4a]/bestaudio"
	defaultURLTemplate    = "https://www.youtube.com/watch?v=%s"

	defaultSeparationModel    = "htdemucs"
	defaultSeparationDevice   = "cpu"
	defaultSeparationThreads  = 2
	defaultSeparationMemoryMB = 4096
	defaultSeparationNice     = 10
	defaultKeep               = "instrumental"

	defaultSegmentSeconds      = 30
	defaultReadyThresholdBytes = 500000
	defaultPollIntervalMS      = 1000
	defaultReadyTimeoutSeconds = 120
	defaultCleanupGraceMS      = 2000

	defaultPlayerCacheSeconds = 60

	defaultNtfyServer           = "https://ntfy.sh"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 14
	defaultLogMaxSizeMB         = 20
	defaultLogMaxBackups        = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Tools: Tools{
			YtDlp:      defaultYtDlpBinary,
			FFmpeg:     defaultFFmpegBinary,
			FFprobe:    defaultFFprobeBinary,
			Demucs:     defaultDemucsBinary,
			Player:     defaultPlayerBinary,
			NotifySend: defaultNotifyBinary,
		},
		Download: Download{
			Format:      defaultDownloadFormat,
			URLTemplate: defaultURLTemplate,
		},
		Separation: Separation{
			Model:          defaultSeparationModel,
			Device:         defaultSeparationDevice,
			Threads:        defaultSeparationThreads,
			MemoryLimitMiB: defaultSeparationMemoryMB,
			Nice:           defaultSeparationNice,
			Keep:           defaultKeep,
		},
		Pipeline: Pipeline{
			SegmentSeconds:      defaultSegmentSeconds,
			ReadyThresholdBytes: defaultReadyThresholdBytes,
			PollIntervalMS:      defaultPollIntervalMS,
			ReadyTimeoutSeconds: defaultReadyTimeoutSeconds,
			CleanupGraceMS:      defaultCleanupGraceMS,
		},
		Player: Player{
			Enabled:      true,
			CacheSeconds: defaultPlayerCacheSeconds,
		},
		Notifications: Notifications{
			Desktop:        true,
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "walker-yt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/walker-yt"
	}
	return filepath.Join(home, ".cache", "walker-yt")
}
