package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"walkeryt/internal/config"
)

// CheckNtfyFromConfig evaluates ntfy status from config and connectivity.
func CheckNtfyFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "ntfy"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	check := CheckNtfy(ctx, cfg.Notifications.NtfyServer)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (topic %s)", check.Detail, cfg.Notifications.NtfyTopic)}
	}
	return Result{Name: name, Detail: check.Detail}
}

// CheckSeparationDevice verifies that a GPU is visible when demucs is told to
// use one. CPU separation always passes.
func CheckSeparationDevice(ctx context.Context, device string) Result {
	const name = "Separation device"
	device = strings.ToLower(strings.TrimSpace(device))
	if device == "" || device == "cpu" {
		return Result{Name: name, Passed: true, Detail: "cpu"}
	}
	if device != "cuda" {
		return Result{Name: name, Passed: true, Detail: device + " (not verified)"}
	}
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return Result{Name: name, Detail: "cuda requested but nvidia-smi not found"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, "nvidia-smi", "-L").Output()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cuda requested but nvidia-smi failed (%v)", err)}
	}
	gpus := classifyGPUs(string(output))
	if len(gpus) == 0 {
		return Result{Name: name, Detail: "cuda requested but no GPU listed"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("cuda (%s)", strings.Join(gpus, ", "))}
}

// classifyGPUs extracts model names from "nvidia-smi -L" output lines such as
// "GPU 0: NVIDIA GeForce RTX 3060 (UUID: ...)".
func classifyGPUs(output string) []string {
	var gpus []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "GPU ") {
			continue
		}
		_, model, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		if idx := strings.Index(model, " (UUID"); idx >= 0 {
			model = model[:idx]
		}
		gpus = append(gpus, strings.TrimSpace(model))
	}
	return gpus
}
