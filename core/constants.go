package core

import "time"

// Environment variable names. LoadFromEnv reads all of them except
// EnvAddress, which nothing reads. Grouped the way the original framework
// groups its GOMIND_* protocol constants.
const (
	EnvPort       = "MATCH_PORT"
	EnvAddress    = "MATCH_ADDRESS"
	EnvDevMode    = "MATCH_DEV_MODE"
	EnvLogLevel   = "MATCH_LOG_LEVEL"
	EnvLogFormat  = "MATCH_LOG_FORMAT"
	EnvMaxResults = "MATCH_MAX_RESULTS"
)

// DefaultCallTimeout is the hard per-executor timeout used when an
// algorithm config does not specify one. Chosen to satisfy spec.md's
// "default 80ms for NEXTEN" budget for the tightest path while leaving
// headroom for the other four algorithms.
const DefaultCallTimeout = 80 * time.Millisecond

// DefaultFallbackTimeout bounds a single fallback-chain attempt.
const DefaultFallbackTimeout = 5 * time.Second

// DefaultAdapterCacheSize is the hard upper bound on cached adapted
// payloads (per spec.md §5 resource limits).
const DefaultAdapterCacheSize = 1000

// DefaultPerformanceRingSize is the bounded ring size for performance
// records (per spec.md §3, "size configurable >= 1000").
const DefaultPerformanceRingSize = 10000
