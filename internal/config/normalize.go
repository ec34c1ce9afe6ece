package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeDownload()
	c.normalizeSeparation()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlp = fallback(c.Tools.YtDlp, defaultYtDlpBinary)
	c.Tools.FFmpeg = fallback(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = fallback(c.Tools.FFprobe, defaultFFprobeBinary)
	c.Tools.Demucs = fallback(c.Tools.Demucs, defaultDemucsBinary)
	c.Tools.Player = fallback(c.Tools.Player, defaultPlayerBinary)
	c.Tools.NotifySend = fallback(c.Tools.NotifySend, defaultNotifyBinary)
}

func (c *Config) normalizeDownload() {
	c.Download.Format = fallback(c.Download.Format, defaultDownloadFormat)
	c.Download.URLTemplate = fallback(c.Download.URLTemplate, defaultURLTemplate)
}

func (c *Config) normalizeSeparation() {
	c.Separation.Model = fallback(c.Separation.Model, defaultSeparationModel)
	c.Separation.Device = fallback(c.Separation.Device, defaultSeparationDevice)
	c.Separation.Keep = NormalizeKeep(c.Separation.Keep)
	if c.Separation.Keep == "" {
		c.Separation.Keep = defaultKeep
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("WALKER_YT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.NtfyServer = strings.TrimRight(fallback(c.Notifications.NtfyServer, defaultNtfyServer), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// NormalizeKeep maps user-facing stem names onto "vocals" or "instrumental".
// Unknown values are returned lowercased so validation can reject them.
func NormalizeKeep(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "vocals", "voice", "vocal":
		return "vocals"
	case "instrumental", "music", "no_vocals", "karaoke":
		return "instrumental"
	default:
		return value
	}
}

func fallback(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}
