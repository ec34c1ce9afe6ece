//go:build linux

package separation

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply caps a freshly started process.
func (l Limits) Apply(pid int) error {
	if limit := l.MemoryLimitBytes(); limit > 0 {
		rlimit := unix.Rlimit{Cur: limit, Max: limit}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rlimit, nil); err != nil {
			return fmt.Errorf("set address space limit: %w", err)
		}
	}
	if l.Nice > 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, l.Nice); err != nil {
			return fmt.Errorf("set priority: %w", err)
		}
	}
	return nil
}
