package procs_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"walkeryt/internal/procs"
)

type recordingLauncher struct {
	roles []procs.Role
}

func (r *recordingLauncher) Start(_ context.Context, cmd *exec.Cmd, role procs.Role) (procs.WaitFunc, error) {
	r.roles = append(r.roles, role)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

func TestRunCapturedIncludesStderr(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "echo 'segment muxer failed' >&2; exit 3")
	err := procs.RunCaptured(context.Background(), nil, cmd, procs.RoleSplitter)
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "segment muxer failed") || !strings.HasPrefix(err.Error(), "splitter:") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestRunCapturedUsesLauncher(t *testing.T) {
	launcher := &recordingLauncher{}
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	if err := procs.RunCaptured(context.Background(), launcher, cmd, procs.RoleDecoder); err != nil {
		t.Fatalf("RunCaptured: %v", err)
	}
	if len(launcher.roles) != 1 || launcher.roles[0] != procs.RoleDecoder {
		t.Fatalf("unexpected roles %v", launcher.roles)
	}
}

func TestTail(t *testing.T) {
	if got := procs.Tail("  short \n", 10); got != "short" {
		t.Fatalf("got %q want %q", got, "short")
	}
	if got := procs.Tail("0123456789", 4); got != "...6789" {
		t.Fatalf("got %q want %q", got, "...6789")
	}
}

func TestRunReportsStartFailure(t *testing.T) {
	cmd := exec.Command("/nonexistent/walker-yt-tool")
	if err := procs.Run(context.Background(), nil, cmd, procs.RolePlayer); err == nil {
		t.Fatal("expected start error")
	}
}
