package config

import (
	"runtime"

	"github.com/shirou/gopsutil/cpu"
)

// ResolveThreads returns the worker count to use. An explicit positive
// value wins; 0 means one worker per logical CPU.
func (c *Config) ResolveThreads() int {
	if c.Search.Threads > 0 {
		return c.Search.Threads
	}
	return DetectThreads()
}

// DetectThreads reports the number of logical CPUs, falling back to the Go
// runtime's view when the host cannot be queried
func DetectThreads() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n > MaxThreads {
		n = MaxThreads
	}
	return n
}
