package pperf

import "errors"

// Sentinel error kinds for the fatal rows of spec.md §7, plus
// ErrUnresolvedBranch (a warn row, see below) and ErrCacheCorrupt. The
// other warn and non-fatal rows are logged instead (see
// Environment.Log) and do not appear here.
var (
	// ErrVersionMismatch is returned when an artifact's version tag
	// does not match the tag this build expects.
	ErrVersionMismatch = errors.New("pperf: incompatible version")
	// ErrSubprocess is returned when a toolchain subprocess exits
	// non-zero or cannot be started.
	ErrSubprocess = errors.New("pperf: toolchain subprocess failed")
	// ErrMissingBinary is returned when a VMMap entry cannot be found
	// under any configured search path.
	ErrMissingBinary = errors.New("pperf: binary not found under search paths")
	// ErrUnresolvedBranch counts static branches whose target could
	// not be determined; it is surfaced as a warning count, never
	// fatal, but is exposed as a typed value for callers that want to
	// treat it strictly.
	ErrUnresolvedBranch = errors.New("pperf: unresolved branch target")
	// ErrEmptyResult is returned when filtering removes every key from
	// an aggregate or comparison.
	ErrEmptyResult = errors.New("pperf: nothing found, limit too strict?")
	// ErrCacheCorrupt is returned when a cache file exists but fails to
	// decode or its internal invariants don't hold.
	ErrCacheCorrupt = errors.New("pperf: elf cache corrupt")
)
