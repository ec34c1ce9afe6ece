package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.segment_seconds":       c.Pipeline.SegmentSeconds,
		"pipeline.poll_interval_ms":      c.Pipeline.PollIntervalMS,
		"pipeline.ready_timeout_seconds": c.Pipeline.ReadyTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.ReadyThresholdBytes <= 0 {
		return errors.New("pipeline.ready_threshold_bytes must be positive")
	}
	if c.Pipeline.CleanupGraceMS < 0 {
		return errors.New("pipeline.cleanup_grace_ms must be >= 0")
	}
	if c.Pipeline.PollIntervalMS >= c.Pipeline.ReadyTimeoutSeconds*1000 {
		return errors.New("pipeline.poll_interval_ms must be shorter than pipeline.ready_timeout_seconds")
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Keep {
	case "vocals", "instrumental":
	default:
		return fmt.Errorf("separation.keep must be \"vocals\" or \"instrumental\", got %q", c.Separation.Keep)
	}
	if c.Separation.Threads <= 0 {
		return errors.New("separation.threads must be positive")
	}
	if c.Separation.MemoryLimitMiB < 0 {
		return errors.New("separation.memory_limit_mib must be >= 0 (0 disables the limit)")
	}
	if c.Separation.Nice < 0 || c.Separation.Nice > 19 {
		return errors.New("separation.nice must be between 0 and 19")
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if c.Player.CacheSeconds < 0 {
		return errors.New("player.cache_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
