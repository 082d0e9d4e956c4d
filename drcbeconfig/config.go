// Completion: 100% - Module complete

// Package drcbeconfig reads the small set of environment-driven knobs the
// code generator and its test harness consult at startup: verbose
// instruction tracing, the code cache arena size, and a lane-tracing switch
// (TraceLanes) that is read but not consulted by anything else.
package drcbeconfig

import "github.com/xyproto/env/v2"

const (
	envVerbose    = "DRCBE_VERBOSE"
	envCacheBytes = "DRCBE_CACHE_BYTES"
	envTraceLanes = "DRCBE_TRACE_LANES"
)

const defaultCacheBytes = 1 << 20

// Config holds the resolved knob values.
type Config struct {
	Verbose     bool
	CacheBytes  int
	TraceLanes  bool
}

// Load reads Config from the process environment, falling back to the
// package defaults for anything unset.
func Load() Config {
	return Config{
		Verbose:    env.Bool(envVerbose),
		CacheBytes: env.Int(envCacheBytes, defaultCacheBytes),
		TraceLanes: env.Bool(envTraceLanes),
	}
}
