// config.go: runtime knobs read from the environment.
package ruchy

import "github.com/xyproto/env/v2"

// Config collects the tunables of the execution core. Zero-config defaults
// match the documented limits; every knob can be overridden per process.
type Config struct {
	// MaxDepth is the call-depth limit shared by the interpreter and the VM.
	MaxDepth int
	// GCThreshold is the allocated-byte estimate that triggers a collection.
	GCThreshold int
	// CacheCap is the maximum number of live inline-cache sites.
	CacheCap int
	// CacheEnabled toggles type-feedback collection.
	CacheEnabled bool
	// DebugBytecode dumps a disassembly of every compiled chunk to stderr.
	DebugBytecode bool
}

// DefaultMaxDepth is the call-depth limit when RUCHY_MAX_DEPTH is unset.
const DefaultMaxDepth = 1024

// DefaultGCThreshold is 1 MiB of tracked allocation.
const DefaultGCThreshold = 1 << 20

// DefaultCacheCap bounds the number of inline-cache sites.
const DefaultCacheCap = 10000

// LoadConfig reads RUCHY_* environment variables, falling back to defaults.
func LoadConfig() Config {
	return Config{
		MaxDepth:      env.Int("RUCHY_MAX_DEPTH", DefaultMaxDepth),
		GCThreshold:   env.Int("RUCHY_GC_THRESHOLD", DefaultGCThreshold),
		CacheCap:      env.Int("RUCHY_CACHE_CAP", DefaultCacheCap),
		CacheEnabled:  env.Str("RUCHY_CACHE", "on") != "off",
		DebugBytecode: env.Bool("RUCHY_DEBUG_BYTECODE"),
	}
}
