// Package sample implements the sample field vector, its meta bitset,
// the reversible listmapper interning, and the sample formatter
// (spec.md §3 "Sample field vector" / "Meta bitset", §4.C, §4.E).
package sample

import "fmt"

// Position names one of the nine stable positions of a sample field
// vector. Positions never move: every producer and consumer agrees on
// them by index, matching the Python SAMPLE class in profileLib.py.
type Position int

const (
	PC Position = iota
	Binary
	File
	Function
	BasicBlock
	Line
	Instruction
	Opcode
	MetaPos
)

// Names gives the display name of each Position, indexed the same way
// as the Position constants.
var Names = [...]string{
	PC:          "pc",
	Binary:      "binary",
	File:        "file",
	Function:    "function",
	BasicBlock:  "basicblock",
	Line:        "line",
	Instruction: "instruction",
	Opcode:      "opcode",
	MetaPos:     "meta",
}

// PositionByName resolves a field name to its Position, mirroring
// SAMPLE.names.index(...) in the original.
func PositionByName(name string) (Position, bool) {
	for i, n := range Names {
		if n == name {
			return Position(i), true
		}
	}
	return 0, false
}

// stringPositions is the set of positions whose values are free-form
// strings and are therefore compressible by a Mapper.
var stringPositions = map[Position]bool{
	Binary:      true,
	File:        true,
	Function:    true,
	BasicBlock:  true,
	Instruction: true,
}

// Vector is the sample field vector. Every position except PC may be
// absent (nil).
type Vector struct {
	PC          uint64
	Binary      *string
	File        *string
	Function    *string
	BasicBlock  *string
	Line        *uint64
	Instruction *string
	Opcode      *uint64
	Meta        Meta
}

// Invalid returns a vector with only PC set, used whenever a PC cannot
// be correlated to anything (spec.md §4.B "Lookup contract", §4.D
// "Translation" step 1).
func Invalid(pc uint64) Vector {
	return Vector{PC: pc}
}

// WithBinary returns a copy of an invalid/partial vector with only the
// binary name set, used for cache misses and kernel PCs.
func WithBinary(pc uint64, binary string) Vector {
	return Vector{PC: pc, Binary: &binary}
}

func ptr[T any](v T) *T { return &v }

// Str is a convenience constructor for an optional string field.
func Str(s string) *string { return ptr(s) }

// UInt is a convenience constructor for an optional uint64 field.
func UInt(v uint64) *uint64 { return ptr(v) }

func str(s string) *string   { return &s }
func u64(v uint64) *uint64   { return &v }
func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
func eqU64(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Equal compares two vectors field by field (used by tests and by
// cache-idempotence checks).
func (v Vector) Equal(o Vector) bool {
	return v.PC == o.PC &&
		eqStr(v.Binary, o.Binary) &&
		eqStr(v.File, o.File) &&
		eqStr(v.Function, o.Function) &&
		eqStr(v.BasicBlock, o.BasicBlock) &&
		eqU64(v.Line, o.Line) &&
		eqStr(v.Instruction, o.Instruction) &&
		eqU64(v.Opcode, o.Opcode) &&
		v.Meta == o.Meta
}

func (v Vector) String() string {
	return fmt.Sprintf("Vector{pc=0x%x binary=%s function=%s line=%s}",
		v.PC, derefStr(v.Binary), derefStr(v.Function), derefU64(v.Line))
}

func derefStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func derefU64(u *uint64) string {
	if u == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", *u)
}

// Mapped is the parallel record where every string-valued position has
// been replaced by an integer index into the Mapper's per-position
// dictionary (spec.md §3 "Mapped sample").
type Mapped struct {
	PC          uint64
	Binary      *int
	File        *int
	Function    *int
	BasicBlock  *int
	Line        *uint64
	Instruction *int
	Opcode      *uint64
	Meta        Meta
}
