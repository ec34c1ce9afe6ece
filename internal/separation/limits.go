package separation

import (
	"strconv"
)

// Limits caps the resources of one model invocation.
type Limits struct {
	Threads        int
	MemoryLimitMiB int
	Nice           int
}

var threadEnvVars = []string{
	"OMP_NUM_THREADS",
	"MKL_NUM_THREADS",
	"OPENBLAS_NUM_THREADS",
	"TORCH_NUM_THREADS",
}

// Env returns the environment entries that bound library thread pools.
func (l Limits) Env() []string {
	if l.Threads <= 0 {
		return nil
	}
	value := strconv.Itoa(l.Threads)
	env := make([]string, 0, len(threadEnvVars))
	for _, key := range threadEnvVars {
		env = append(env, key+"="+value)
	}
	return env
}

// MemoryLimitBytes returns the address space cap, or 0 for none.
func (l Limits) MemoryLimitBytes() uint64 {
	if l.MemoryLimitMiB <= 0 {
		return 0
	}
	return uint64(l.MemoryLimitMiB) << 20
}
