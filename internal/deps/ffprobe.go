package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to run. An explicitly configured
// path wins. The bare default prefers an ffprobe installed beside the
// configured ffmpeg, since static builds ship the pair together, and falls
// back to PATH.
func ResolveFFprobe(ffprobeCommand, ffmpegCommand string) string {
	ffprobe := strings.TrimSpace(ffprobeCommand)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if ffprobe != "ffprobe" {
		return ffprobe
	}
	if ffmpeg := strings.TrimSpace(ffmpegCommand); ffmpeg != "" {
		if resolved, err := exec.LookPath(ffmpeg); err == nil {
			candidate := filepath.Join(filepath.Dir(resolved), "ffprobe")
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				return candidate
			}
		}
	}
	return ffprobe
}

// CheckFFprobe reports the ffprobe binary ResolveFFprobe selects.
func CheckFFprobe(ffprobeCommand, ffmpegCommand string) Status {
	result := Status{
		Name:        "FFprobe",
		Description: "Validates the downloaded container before splitting",
	}
	command := ResolveFFprobe(ffprobeCommand, ffmpegCommand)
	if resolved, err := exec.LookPath(command); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}
	result.Command = command
	result.Detail = fmt.Sprintf("binary %q not found", command)
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
