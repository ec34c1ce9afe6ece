package guard

// StartTimeForTest exposes the /proc start time lookup.
func StartTimeForTest(pid int) (uint64, error) { return startTime(pid) }
