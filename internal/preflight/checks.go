package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"walkeryt/internal/config"
	"walkeryt/internal/deps"
)

// CheckNtfy verifies the ntfy server answers its health endpoint.
func CheckNtfy(ctx context.Context, server string) Result {
	const name = "ntfy"
	base := strings.TrimRight(strings.TrimSpace(server), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing server url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/v1/health", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "server requires authentication"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least min bytes
// available to unprivileged users. The result is advisory.
func CheckFreeSpace(name, path string, min uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, formatBytes(free))
	if free < min {
		return Result{Name: name, Advisory: true, Detail: fmt.Sprintf("%s; need %s", detail, formatBytes(min))}
	}
	return Result{Name: name, Passed: true, Advisory: true, Detail: detail}
}

// CheckSystemDeps evaluates all external binaries for the given config.
// Both "separate" and "doctor" use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlp,
			Description: "Required to download the source track",
			Hint:        "pipx install yt-dlp",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for splitting and decoding",
		},
		{
			Name:        "Demucs",
			Command:     cfg.Tools.Demucs,
			Description: "Required for per-segment source separation",
			Hint:        "pip install demucs",
		},
	}
	if cfg.Player.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "mpv",
			Command:     cfg.Tools.Player,
			Description: "Plays the separated stream",
		})
	}
	if cfg.Notifications.Desktop {
		requirements = append(requirements, deps.Requirement{
			Name:        "notify-send",
			Command:     cfg.Tools.NotifySend,
			Description: "Shows desktop progress notifications",
			Optional:    true,
		})
	}
	statuses := deps.CheckBinaries(requirements)
	// ffprobe resolution depends on where ffmpeg lives.
	return append(statuses, deps.CheckFFprobe(cfg.Tools.FFprobe, cfg.Tools.FFmpeg))
}

// MissingRequired returns the names of unavailable non-optional binaries.
func MissingRequired(statuses []deps.Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
