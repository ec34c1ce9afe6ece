package preflight

import (
	"context"
	"strings"

	"walkeryt/internal/config"
)

// MinCacheFreeBytes is the free space required in the cache directory. One
// track needs the download, its segments, the separated stems, and the PCM
// buffer at the same time.
const MinCacheFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
// Advisory results are shown but never block a run.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckFreeSpace("Cache free space", cfg.Paths.CacheDir, MinCacheFreeBytes))

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyServer))
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Separation.Device), "cuda") {
		results = append(results, CheckSeparationDevice(ctx, cfg.Separation.Device))
	}
	return results
}

// Blocking returns the failed results that are not advisory.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			out = append(out, r)
		}
	}
	return out
}
