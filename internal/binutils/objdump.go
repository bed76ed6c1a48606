// Package binutils holds pure, subprocess-free parsing for the
// textual output shapes of objdump, addr2line and readelf. Keeping the
// grammars here (rather than inline in pkg/toolchain) lets them be unit
// tested against fixture text without a real toolchain installed,
// mirroring the regexes in the original tool's profileLib.py.
package binutils

import (
	"regexp"
	"strconv"
	"strings"
)

// Section describes one entry of `objdump -wh`.
type Section struct {
	Name       string
	FileOffset uint64
	VAddr      uint64
	Size       uint64
	Code       bool
}

var sectionFieldsRe = regexp.MustCompile(`[\t ]+`)

// ParseSectionHeaderLine parses one line of `objdump -wh` output and
// reports whether it names an executable (CODE) section. Lines that
// don't look like a section row are ignored (ok=false).
func ParseSectionHeaderLine(line string) (Section, bool) {
	line = strings.ReplaceAll(line, ", ", ",")
	fields := sectionFieldsRe.Split(strings.TrimSpace(line), -1)
	if len(fields) < 8 || !strings.Contains(fields[7], "CODE") {
		return Section{}, false
	}
	size, _ := strconv.ParseUint(fields[2], 16, 64)
	vaddr, _ := strconv.ParseUint(fields[3], 16, 64)
	fileOff, _ := strconv.ParseUint(fields[5], 16, 64)
	return Section{
		Name:       fields[1],
		Size:       size,
		VAddr:      vaddr,
		FileOffset: fileOff,
		Code:       true,
	}, true
}

// Instruction is one disassembled instruction, in the structured shape
// spec.md §4.A requires of the toolchain adapter's Disassemble
// operation.
type Instruction struct {
	PC             uint64
	Opcode         uint64
	FunctionLabel  string
	FunctionOffset *uint64 // nil means this PC starts a new function
	Mnemonic       string
	Arguments      string
}

// disassemblyLineRe is adapted from the Python objdumpLine regex
// `([0-9a-fA-F]+) <([^+]+)?\+?(0x[0-9a-f-A-F]+)?> ([0-9a-fA-F ]+)[\t]+([^<\t ]+)?(.+)?`:
// it is anchored at both ends, drops the stray '-' from the offset's
// character class, and lets the trailing group match empty.
var disassemblyLineRe = regexp.MustCompile(
	`^([0-9a-fA-F]+) <([^+]+)?\+?(0x[0-9a-fA-F]+)?> ([0-9a-fA-F ]+)[\t]+([^<\t ]+)?(.*)$`)

// ParseDisassemblyLine parses one line of
// `objdump -Dwz --prefix-addresses --show-raw-insn` output.
func ParseDisassemblyLine(line string) (Instruction, bool) {
	m := disassemblyLineRe.FindStringSubmatch(line)
	if m == nil {
		return Instruction{}, false
	}

	pc, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return Instruction{}, false
	}

	var opcode uint64
	rawOpcode := strings.ReplaceAll(strings.TrimSpace(m[4]), " ", "")
	if rawOpcode != "" {
		opcode, _ = strconv.ParseUint(rawOpcode, 16, 64)
	}

	inst := Instruction{
		PC:            pc,
		Opcode:        opcode,
		FunctionLabel: m[2], // overwritten by addr2line resolution when richer info is available
		Mnemonic:      strings.ToLower(strings.TrimSpace(m[5])),
		Arguments:     strings.TrimSpace(m[6]),
	}

	if m[3] != "" {
		off, err := strconv.ParseUint(strings.TrimPrefix(m[3], "0x"), 16, 64)
		if err == nil {
			inst.FunctionOffset = &off
		}
	}

	return inst, true
}

// RenderedLine reconstructs the full assembly-line text (mnemonic plus
// arguments) the way ELF cache asm entries store it, tab-separated so
// SplitArgs can recover the argument text later.
func (i Instruction) RenderedLine() string {
	if i.Arguments == "" {
		return i.Mnemonic
	}
	return i.Mnemonic + "\t" + i.Arguments
}

// SplitArgs splits the tab-delimited rendered line used by the
// annotator's asm table back into mnemonic and argument text.
func SplitArgs(rendered string) (mnemonic, args string) {
	parts := strings.SplitN(rendered, "\t", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
