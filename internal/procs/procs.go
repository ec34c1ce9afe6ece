package procs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Role labels a child process in the process registry.
type Role string

const (
	RoleSplitter  Role = "splitter"
	RoleSeparator Role = "separator"
	RoleDecoder   Role = "decoder"
	RolePlayer    Role = "player"
)

// WaitFunc blocks until a started command exits.
type WaitFunc func() error

// Launcher starts a prepared command. The returned WaitFunc must be called
// exactly once.
type Launcher interface {
	Start(ctx context.Context, cmd *exec.Cmd, role Role) (WaitFunc, error)
}

// Direct starts commands without tracking them.
type Direct struct{}

func (Direct) Start(_ context.Context, cmd *exec.Cmd, _ Role) (WaitFunc, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

// Or returns l, or Direct when l is nil.
func Or(l Launcher) Launcher {
	if l == nil {
		return Direct{}
	}
	return l
}

// Run starts cmd through l and waits for it.
func Run(ctx context.Context, l Launcher, cmd *exec.Cmd, role Role) error {
	wait, err := Or(l).Start(ctx, cmd, role)
	if err != nil {
		return err
	}
	return wait()
}

// RunCaptured runs cmd through l and folds the tail of stderr into the
// returned error. cmd.Stderr must be unset.
func RunCaptured(ctx context.Context, l Launcher, cmd *exec.Cmd, role Role) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := Run(ctx, l, cmd, role); err != nil {
		if tail := Tail(stderr.String(), 400); tail != "" {
			return fmt.Errorf("%s: %w: %s", role, err, tail)
		}
		return fmt.Errorf("%s: %w", role, err)
	}
	return nil
}

// Tail trims s and keeps at most the last limit bytes.
func Tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
