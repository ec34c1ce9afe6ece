package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
	"walkeryt/internal/procs"
	"walkeryt/internal/runstore"
	"walkeryt/internal/services"
)

// MarkerEnv is set on every child process walker-yt launches. Its value is
// the run identifier, or the instance identifier outside a run.
const MarkerEnv = "WALKER_YT_MARKER"

// ErrLocked is returned when the instance lock stays held after the previous
// instance was terminated.
var ErrLocked = errors.New("another walker-yt instance holds the lock")

// Guard owns the instance lock and the child process registry.
type Guard struct {
	lockPath string
	pidPath  string
	lock     *flock.Flock
	store    *runstore.Store
	grace    time.Duration
	logger   *slog.Logger
	id       string

	mu       sync.Mutex
	children map[int]*child
	held     bool
}

type child struct {
	pid     int
	role    procs.Role
	command string
	exited  chan struct{}
}

// Superseded summarizes what Acquire or Stop terminated.
type Superseded struct {
	InstancePID int
	Children    int
	Stale       int
	Interrupted int64
}

// New constructs a Guard for cfg. store may be nil, in which case only the
// in-memory registry is kept.
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Guard {
	grace := cfg.CleanupGrace()
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Guard{
		lockPath: cfg.LockPath(),
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(cfg.LockPath()),
		store:    store,
		grace:    grace,
		logger:   logging.NewComponentLogger(logger, "guard"),
		id:       uuid.NewString(),
		children: make(map[int]*child),
	}
}

// ID returns the instance identifier used as the marker outside a run.
func (g *Guard) ID() string { return g.id }

// Acquire terminates any previous instance and its registered children, then
// takes the instance lock and records this process in the PID file.
func (g *Guard) Acquire(ctx context.Context) (Superseded, error) {
	result, err := g.Supersede(ctx)
	if err != nil {
		return result, err
	}

	if err := os.MkdirAll(filepath.Dir(g.lockPath), 0o755); err != nil {
		return result, fmt.Errorf("create lock dir: %w", err)
	}
	lockCtx, cancel := context.WithTimeout(ctx, g.grace+2*time.Second)
	defer cancel()
	ok, err := g.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("acquire lock %s: %w", g.lockPath, err)
	}
	if !ok {
		return result, fmt.Errorf("%w: %s", ErrLocked, g.lockPath)
	}

	self := instance{PID: os.Getpid()}
	if st, err := startTime(self.PID); err == nil {
		self.StartTime = st
	}
	if err := writePIDFile(g.pidPath, self); err != nil {
		_ = g.lock.Unlock()
		return result, err
	}

	g.mu.Lock()
	g.held = true
	g.mu.Unlock()

	if g.store != nil {
		n, err := g.store.MarkInterrupted(ctx)
		if err != nil {
			g.cleanupWarning("mark interrupted runs failed", err)
		}
		result.Interrupted = n
	}
	g.logger.Info("instance lock acquired",
		logging.String("lock", g.lockPath),
		logging.Int("superseded_pid", result.InstancePID),
		logging.Int("terminated_children", result.Children),
		logging.Int64("interrupted_runs", result.Interrupted),
	)
	return result, nil
}

// Supersede terminates the instance named in the PID file and every
// registered child that still carries its launch marker. Registry rows are
// removed whether or not their process was still running. It does not take
// the lock.
func (g *Guard) Supersede(ctx context.Context) (Superseded, error) {
	var result Superseded

	inst, err := readPIDFile(g.pidPath)
	switch {
	case err == nil && inst.verified():
		g.logger.Info("terminating previous instance", logging.Int("pid", inst.PID))
		if err := g.terminate(inst.PID, inst.PID, false); err != nil {
			g.cleanupWarning("previous instance termination failed", err, logging.Int("pid", inst.PID))
		}
		result.InstancePID = inst.PID
	case err != nil && !errors.Is(err, os.ErrNotExist):
		g.logger.Debug("ignoring unreadable pid file", logging.Error(err))
	}

	if g.store == nil {
		return result, nil
	}
	rows, err := g.store.ListProcesses(ctx)
	if err != nil {
		return result, fmt.Errorf("list registered processes: %w", err)
	}
	for _, row := range rows {
		if g.isOwnChild(row.PID) {
			continue
		}
		if alive(row.PID) && hasMarker(row.PID, row.Marker) {
			g.logger.Info("terminating orphaned child",
				logging.Int("pid", row.PID),
				logging.String("role", row.Role),
				logging.String(logging.FieldRunID, row.RunID),
			)
			pgid := row.PGID
			if pgid <= 0 {
				pgid = row.PID
			}
			if err := g.terminate(row.PID, pgid, true); err != nil {
				g.cleanupWarning("orphaned child termination failed", err, logging.Int("pid", row.PID))
			}
			result.Children++
		} else {
			result.Stale++
		}
		if err := g.store.RemoveProcess(ctx, row.PID); err != nil {
			g.cleanupWarning("registry cleanup failed", err, logging.Int("pid", row.PID))
		}
	}
	return result, nil
}

// Start implements procs.Launcher. cmd must come from exec.CommandContext;
// cancelling ctx kills the whole process group.
func (g *Guard) Start(ctx context.Context, cmd *exec.Cmd, role procs.Role) (procs.WaitFunc, error) {
	marker := g.id
	if runID, ok := services.RunIDFromContext(ctx); ok {
		marker = runID
	}

	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, MarkerEnv+"="+marker)
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = g.grace

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	pid := cmd.Process.Pid
	c := &child{
		pid:     pid,
		role:    role,
		command: strings.Join(cmd.Args, " "),
		exited:  make(chan struct{}),
	}
	g.mu.Lock()
	g.children[pid] = c
	g.mu.Unlock()

	if g.store != nil {
		runID, _ := services.RunIDFromContext(ctx)
		row := runstore.Process{
			PID:     pid,
			PGID:    pid,
			Role:    string(role),
			RunID:   runID,
			Marker:  marker,
			Command: c.command,
		}
		if err := g.store.RegisterProcess(context.WithoutCancel(ctx), row); err != nil {
			g.cleanupWarning("process registration failed", err, logging.Int("pid", pid))
		}
	}
	g.logger.Debug("child started",
		logging.Int("pid", pid),
		logging.String("role", string(role)),
		logging.String("command", c.command),
	)

	var once sync.Once
	var waitErr error
	wait := func() error {
		once.Do(func() {
			waitErr = cmd.Wait()
			close(c.exited)
			g.forget(ctx, pid)
		})
		return waitErr
	}
	return wait, nil
}

// Children returns the PIDs of running registered children.
func (g *Guard) Children() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, 0, len(g.children))
	for pid := range g.children {
		out = append(out, pid)
	}
	return out
}

// Terminate sends SIGTERM to every registered process group, then SIGKILL to
// those still alive after the grace period. Failures are logged.
func (g *Guard) Terminate() {
	g.mu.Lock()
	targets := make([]*child, 0, len(g.children))
	for _, c := range g.children {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *child) {
			defer wg.Done()
			if err := g.terminateChild(c); err != nil {
				g.cleanupWarning("child termination failed", err,
					logging.Int("pid", c.pid),
					logging.String("role", string(c.role)),
				)
			}
		}(c)
	}
	wg.Wait()
}

// Release terminates children, removes the PID file, and drops the lock.
func (g *Guard) Release() error {
	g.Terminate()

	g.mu.Lock()
	held := g.held
	g.held = false
	g.mu.Unlock()
	if !held {
		return nil
	}

	var errs []error
	if err := removePIDFile(g.pidPath, os.Getpid()); err != nil {
		errs = append(errs, fmt.Errorf("remove pid file: %w", err))
	}
	if err := g.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		g.cleanupWarning("release failed", err)
		return services.Wrap(services.ErrCleanup, "guard", "release", "instance cleanup incomplete", err)
	}
	g.logger.Debug("instance lock released", logging.String("lock", g.lockPath))
	return nil
}

func (g *Guard) isOwnChild(pid int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.children[pid]
	return ok
}

func (g *Guard) forget(ctx context.Context, pid int) {
	g.mu.Lock()
	delete(g.children, pid)
	g.mu.Unlock()
	if g.store != nil {
		if err := g.store.RemoveProcess(context.WithoutCancel(ctx), pid); err != nil {
			g.cleanupWarning("registry cleanup failed", err, logging.Int("pid", pid))
		}
	}
}

func (g *Guard) terminateChild(c *child) error {
	exited := func() bool {
		select {
		case <-c.exited:
			return true
		default:
			return !alive(c.pid)
		}
	}
	if exited() {
		return nil
	}
	if err := killGroup(c.pid, unix.SIGTERM); err != nil {
		return err
	}
	if waitFor(exited, g.grace) {
		return nil
	}
	g.logger.Info("escalating to SIGKILL", logging.Int("pid", c.pid), logging.String("role", string(c.role)))
	if err := killGroup(c.pid, unix.SIGKILL); err != nil {
		return err
	}
	if !waitFor(exited, g.grace) {
		return fmt.Errorf("pid %d survived SIGKILL", c.pid)
	}
	return nil
}

// terminate stops a process that is not our child. With group set the
// signals go to the process group pgid.
func (g *Guard) terminate(pid, pgid int, group bool) error {
	send := func(sig syscall.Signal) error {
		if group {
			return killGroup(pgid, sig)
		}
		if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
	gone := func() bool { return !alive(pid) }

	if err := send(unix.SIGTERM); err != nil {
		return err
	}
	if waitFor(gone, g.grace) {
		return nil
	}
	if err := send(unix.SIGKILL); err != nil {
		return err
	}
	if !waitFor(gone, g.grace) {
		return fmt.Errorf("pid %d survived SIGKILL", pid)
	}
	return nil
}

func (g *Guard) cleanupWarning(msg string, err error, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check for leftover demucs or mpv processes"),
		logging.String(logging.FieldImpact, "processes or files may be left behind"),
	)
	logging.WarnWithContext(g.logger, msg, "resource_cleanup_failure", attrs...)
}

func killGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return fmt.Errorf("invalid process group %d", pgid)
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s to group %d: %w", sig, pgid, err)
	}
	return nil
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}
}
