package sample

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Formatter renders a mapped sample as a delimited string using a
// chosen subset of fields (spec.md §4.E). It is pure and stateless
// given a snapshot of the maps it was constructed with: it never
// mutates its dictionaries, unlike a Mapper used for interning.
type Formatter struct {
	maps map[Position][]string
}

// NewFormatter builds a Formatter over a snapshot of per-position
// dictionaries, typically Mapper.Maps() loaded back from a profile.
func NewFormatter(maps map[Position][]string) *Formatter {
	return &Formatter{maps: maps}
}

// Remap substitutes stored strings back into a mapped sample, without
// mutating any dictionary (read-only counterpart of Mapper.Remap).
func (f *Formatter) Remap(mp Mapped) (Vector, error) {
	out := Vector{PC: mp.PC, Line: mp.Line, Opcode: mp.Opcode, Meta: mp.Meta}
	var err error
	if out.Binary, err = f.lookup(Binary, mp.Binary); err != nil {
		return Vector{}, err
	}
	if out.File, err = f.lookup(File, mp.File); err != nil {
		return Vector{}, err
	}
	if out.Function, err = f.lookup(Function, mp.Function); err != nil {
		return Vector{}, err
	}
	if out.BasicBlock, err = f.lookup(BasicBlock, mp.BasicBlock); err != nil {
		return Vector{}, err
	}
	if out.Instruction, err = f.lookup(Instruction, mp.Instruction); err != nil {
		return Vector{}, err
	}
	return out, nil
}

func (f *Formatter) lookup(p Position, idx *int) (*string, error) {
	if idx == nil {
		return nil, nil
	}
	dict := f.maps[p]
	if *idx < 0 || *idx >= len(dict) {
		return nil, fmt.Errorf("sample: formatter invalid index %d for position %s", *idx, Names[p])
	}
	return &dict[*idx], nil
}

// Format joins the requested positions of v with delimiter, rendering
// each field per spec.md §4.E's rules: pc as "0x%x", file as its
// basename, an absent field as labelNone, everything else via its
// string form.
func (f *Formatter) Format(v Vector, keys []Position, delimiter, labelNone string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = f.renderField(v, k, labelNone)
	}
	return strings.Join(parts, delimiter)
}

func (f *Formatter) renderField(v Vector, k Position, labelNone string) string {
	switch k {
	case PC:
		return fmt.Sprintf("0x%x", v.PC)
	case Binary:
		return orLabel(v.Binary, labelNone)
	case File:
		if v.File == nil {
			return labelNone
		}
		return filepath.Base(*v.File)
	case Function:
		return orLabel(v.Function, labelNone)
	case BasicBlock:
		return orLabel(v.BasicBlock, labelNone)
	case Line:
		if v.Line == nil {
			return labelNone
		}
		return strconv.FormatUint(*v.Line, 10)
	case Instruction:
		return orLabel(v.Instruction, labelNone)
	case Opcode:
		if v.Opcode == nil {
			return labelNone
		}
		return strconv.FormatUint(*v.Opcode, 10)
	case MetaPos:
		return v.Meta.String()
	default:
		return labelNone
	}
}

func orLabel(s *string, labelNone string) string {
	if s == nil {
		return labelNone
	}
	return *s
}

// ResolveKeys maps a list of field names (as accepted on a command
// line) to Positions, validating them against Names.
func ResolveKeys(names []string) ([]Position, error) {
	keys := make([]Position, len(names))
	for i, n := range names {
		p, ok := PositionByName(n)
		if !ok {
			return nil, fmt.Errorf("sample: unknown display key %q", n)
		}
		keys[i] = p
	}
	return keys, nil
}
