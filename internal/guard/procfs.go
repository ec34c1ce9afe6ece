package guard

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// alive reports whether pid names a running, non-zombie process.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false
		}
		return unix.Kill(pid, 0) == nil
	}
	fields, err := statFields(data)
	if err != nil || len(fields) == 0 {
		return unix.Kill(pid, 0) == nil
	}
	return fields[0] != "Z" && fields[0] != "X"
}

// startTime returns the process start time in clock ticks since boot. The
// pair (pid, start time) identifies a process across PID reuse.
func startTime(pid int) (uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	fields, err := statFields(data)
	if err != nil {
		return 0, err
	}
	// Field 22 of stat; fields[0] is field 3.
	const idx = 22 - 3
	if len(fields) <= idx {
		return 0, fmt.Errorf("stat for pid %d: too few fields", pid)
	}
	return strconv.ParseUint(fields[idx], 10, 64)
}

// statFields returns the fields after the parenthesized command name.
func statFields(data []byte) ([]string, error) {
	end := bytes.LastIndexByte(data, ')')
	if end < 0 {
		return nil, errors.New("malformed stat")
	}
	return strings.Fields(string(data[end+1:])), nil
}

// hasMarker reports whether pid was launched with MarkerEnv=marker.
func hasMarker(pid int, marker string) bool {
	if marker == "" {
		return false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/environ", pid))
	if err != nil {
		return false
	}
	want := MarkerEnv + "=" + marker
	for _, entry := range bytes.Split(data, []byte{0}) {
		if string(entry) == want {
			return true
		}
	}
	return false
}
