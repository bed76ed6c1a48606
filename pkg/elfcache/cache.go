// Package elfcache builds, persists and looks up per-binary
// address-to-symbol/basic-block/assembly/source tables (spec.md §4.B).
package elfcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pperf/pkg/pperf"
	"pperf/pkg/sample"
)

// Cache is the ELF cache object of spec.md §3: one per (binary, mode)
// pair, where mode distinguishes unwind-inline from outermost-frame
// resolution.
type Cache struct {
	Version          string
	BinaryBasename   string
	DisplayName      string
	Architecture     string
	BuildDate        time.Time
	ToolchainID      string
	UnwindInline     bool
	Entries          map[uint64]sample.Vector
	Asm              map[uint64]string
	Source           map[string][]string // file -> 1-indexed lines, Source[file][0] unused
	UnresolvedBranch int                 // count surfaced as a warning, never fatal

	// CacheFile is the on-disk path this cache was (or would be)
	// persisted to; empty when DisableCache is set. Sample parser
	// uses it to populate cache-map.
	CacheFile string
}

// SampleFor looks up pc in the cache. A miss returns a sample with
// only Binary set, and ok=false so the caller can log the warning
// spec.md §4.B "Lookup contract" requires.
func (c *Cache) SampleFor(pc uint64) (sample.Vector, bool) {
	if v, ok := c.Entries[pc]; ok {
		return v, true
	}
	return sample.WithBinary(pc, c.DisplayName), false
}

func fileName(cacheDir, elfPath string, unwindInline bool, hash string) string {
	prefix := ""
	if unwindInline {
		prefix = "i"
	}
	return filepath.Join(cacheDir, fmt.Sprintf("%s_%s%s", filepath.Base(elfPath), prefix, hash))
}

// load decodes a persisted cache from disk and validates its version
// and toolchain-id tags, returning pperf.ErrVersionMismatch or
// pperf.ErrCacheCorrupt as appropriate.
func load(path, toolchainID string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Cache
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pperf.ErrCacheCorrupt, path, err)
	}
	if c.Version != pperf.CacheVersion {
		return nil, fmt.Errorf("%w: cache %s has version %q, want %q", pperf.ErrVersionMismatch, path, c.Version, pperf.CacheVersion)
	}
	if c.ToolchainID != toolchainID {
		return nil, fmt.Errorf("%w: cache %s built with toolchain %q, now %q", pperf.ErrVersionMismatch, path, c.ToolchainID, toolchainID)
	}
	return &c, nil
}

// persist writes c to path atomically: encode to a temp file in the
// same directory, then rename, so a reader never observes a partial
// write (spec.md §5/§7 "Partial outputs must not be observable").
func persist(path string, c *Cache) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("elfcache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if err := gob.NewEncoder(tmp).Encode(c); err != nil {
		tmp.Close()
		return fmt.Errorf("elfcache: encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("elfcache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("elfcache: rename into place: %w", err)
	}
	return nil
}
