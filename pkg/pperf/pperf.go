// Package pperf holds the values shared across every other package in
// this module: version tags for the on-disk artifacts, the error kinds
// named in the error handling design, and the Environment that replaces
// the package-level globals of the tool this was ported from.
package pperf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Version tags. A loader must reject an artifact whose tag doesn't
// match exactly; see ErrVersionMismatch.
const (
	CacheVersion      = "c0.3"
	ProfileVersion    = "0.5"
	AggregateVersion  = "agg0.9"
	AnnotationVersion = "ann0.1"
)

// Well-known labels used in place of an absent sample field.
const (
	LabelUnknown     = "_unknown"
	LabelForeign     = "_foreign"
	LabelKernel      = "_kernel"
	LabelUnsupported = "_unsupported"
)

// Environment bundles the configuration surface recognised by the core
// (spec.md §6). Constructors take an *Environment explicitly rather than
// reading globals, so that concurrent pipelines with different settings
// can coexist in one process.
type Environment struct {
	// CrossCompilePrefix is prepended to every toolchain binary name,
	// e.g. "aarch64-linux-gnu-".
	CrossCompilePrefix string
	// CacheDir is where ELF caches are persisted. Defaults to
	// ~/.cache/pperf.
	CacheDir string
	// DisableCache, when true, never reads or writes cache files; ELF
	// caches are built in memory for the lifetime of the process only.
	DisableCache bool
	// UnwindInline selects the innermost (true) or outermost (false)
	// frame when addr2line reports an inlined call chain. It also
	// selects a distinct cache file, since the two modes are not
	// interchangeable.
	UnwindInline bool
	// Logger receives warnings for the "warn" rows of the error
	// handling table. A nil Logger falls back to slog.Default().
	Logger *slog.Logger
}

// NewEnvironmentFromOS reads CROSS_COMPILE, PPERF_CACHE, DISABLE_CACHE
// and UNWIND_INLINE exactly as spec.md §6 names them.
func NewEnvironmentFromOS() (*Environment, error) {
	env := &Environment{
		CrossCompilePrefix: os.Getenv("CROSS_COMPILE"),
		DisableCache:       os.Getenv("DISABLE_CACHE") == "1",
		UnwindInline:       os.Getenv("UNWIND_INLINE") == "1",
	}

	if dir := os.Getenv("PPERF_CACHE"); dir != "" {
		env.CacheDir = dir
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("pperf: resolve default cache dir: %w", err)
		}
		env.CacheDir = filepath.Join(home, ".cache", "pperf")
	}

	return env, nil
}

// Log returns the configured logger, or the default one.
func (e *Environment) Log() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// EnsureCacheDir creates CacheDir if it does not already exist.
func (e *Environment) EnsureCacheDir() error {
	if e.DisableCache {
		return nil
	}
	if err := os.MkdirAll(e.CacheDir, 0o755); err != nil {
		return fmt.Errorf("pperf: create cache dir %q: %w", e.CacheDir, err)
	}
	return nil
}
