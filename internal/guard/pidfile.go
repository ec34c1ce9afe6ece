package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// instance is the content of the PID file: the owning process and its start
// time.
type instance struct {
	PID       int
	StartTime uint64
}

func readPIDFile(path string) (instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return instance{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return instance{}, fmt.Errorf("pid file %s is empty", path)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return instance{}, fmt.Errorf("pid file %s: invalid pid %q", path, fields[0])
	}
	inst := instance{PID: pid}
	if len(fields) > 1 {
		if st, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
			inst.StartTime = st
		}
	}
	return inst, nil
}

func writePIDFile(path string, inst instance) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	tmp := path + ".tmp"
	content := fmt.Sprintf("%d %d\n", inst.PID, inst.StartTime)
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("install pid file: %w", err)
	}
	return nil
}

// removePIDFile deletes path only when it still names pid.
func removePIDFile(path string, pid int) error {
	inst, err := readPIDFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return os.Remove(path)
	}
	if inst.PID != pid {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// verified reports whether inst still describes a live process that is not
// the caller. A recorded start time must match.
func (inst instance) verified() bool {
	if inst.PID <= 0 || inst.PID == os.Getpid() || !alive(inst.PID) {
		return false
	}
	if inst.StartTime == 0 {
		return false
	}
	st, err := startTime(inst.PID)
	return err == nil && st == inst.StartTime
}
