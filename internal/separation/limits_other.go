//go:build !linux

package separation

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply lowers the priority of a freshly started process. Address space
// limits need prlimit and are skipped.
func (l Limits) Apply(pid int) error {
	if l.Nice > 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, l.Nice); err != nil {
			return fmt.Errorf("set priority: %w", err)
		}
	}
	return nil
}
