// Package vmmap loads a process's VMMap and kallsyms, and translates
// runtime program counters into mapped samples (spec.md §4.D "Sample
// parser").
package vmmap

import "github.com/google/pprof/profile"

// Binary is the binary descriptor of spec.md §3: the load window and
// on-disk identity of one mapped ELF (or the synthetic kernel entry).
type Binary struct {
	Name          string
	Path          string
	Kernel        bool
	Static        bool
	SectionOffset uint64
	LoadStart     uint64
	Size          uint64
	LoadEnd       uint64 // invariant: LoadEnd == LoadStart + Size
}

// Contains reports whether pc falls within [LoadStart, LoadEnd).
func (b Binary) Contains(pc uint64) bool {
	return pc >= b.LoadStart && pc < b.LoadEnd
}

// Translate converts a runtime pc into the file-relative pc an ELF
// cache was built against (spec.md §4.D "Translation" step 2).
func (b Binary) Translate(pc uint64) uint64 {
	if b.Static {
		return pc
	}
	return pc - b.LoadStart + b.SectionOffset
}

// ToPprofMapping builds a google/pprof profile.Mapping from this
// descriptor, the way cmd/profiler2/cmd/profiler3 build one from a
// /proc/pid/maps row, so a Binary loaded from a VMMap file can be
// handed directly to pprof-consuming tooling.
func (b Binary) ToPprofMapping(id uint64) *profile.Mapping {
	return &profile.Mapping{
		ID:              id,
		Start:           b.LoadStart,
		Limit:           b.LoadEnd,
		Offset:          b.SectionOffset,
		File:            b.Path,
		HasFunctions:    true,
		HasFilenames:    true,
		HasLineNumbers:  true,
		HasInlineFrames: true,
	}
}
