// Package toolchain wraps the target binutils (objdump, addr2line,
// readelf, c++filt) behind a small interface, so the ELF cache builder
// never shells out directly and can be driven by a fixture-backed fake
// in tests.
package toolchain

import (
	"context"

	"pperf/internal/binutils"
)

// Section is one executable section of an ELF file.
type Section struct {
	Name       string
	FileOffset uint64
	VAddr      uint64
	Size       uint64
}

// Instruction is one disassembled instruction; see
// internal/binutils.Instruction for field meaning.
type Instruction = binutils.Instruction

// Resolution is one addr2line answer; see
// internal/binutils.Resolution for field meaning.
type Resolution = binutils.Resolution

// Adapter is the toolchain contract spec.md §4.A names: arch,
// sections, disassemble, resolve, demangle, toolchain-id.
type Adapter interface {
	// Arch reads the ELF header and returns the machine string
	// (e.g. "AArch64", "RISC-V", "x86-64").
	Arch(ctx context.Context, elf string) (string, error)

	// Sections enumerates the executable sections of elf.
	Sections(ctx context.Context, elf string) ([]Section, error)

	// Disassemble streams one record per instruction of the named
	// section to fn. Iteration stops at the first error fn returns.
	Disassemble(ctx context.Context, elf string, section Section, fn func(Instruction) error) error

	// Resolve batch-correlates pcs to (function, file, line).
	// unwindInline selects whether the innermost (true) or
	// outermost (false) inlined frame is reported.
	Resolve(ctx context.Context, elf string, pcs []uint64, unwindInline bool) (map[uint64]Resolution, error)

	// Demangle applies C++ name demangling; idempotent.
	Demangle(ctx context.Context, name string) (string, error)

	// ToolchainID is a stable fingerprint of the binutils versions
	// in use, used to invalidate ELF caches built with an older
	// toolchain.
	ToolchainID(ctx context.Context) (string, error)
}
