package sample

import "fmt"

// Mapper is a bidirectional interner over the string-valued positions
// of a sample vector (spec.md §4.C "Listmapper"). It is an arena per
// sample position: samples carry small integer indices rather than
// string references, eliminating the cyclic references a naive
// string-sharing scheme would create between thread samples and the
// symbol strings they point into (spec.md §9 "Arena + index").
type Mapper struct {
	positions map[Position]bool
	dicts     map[Position][]string
	index     map[Position]map[string]int
}

// NewMapper configures a Mapper over exactly the given positions. PC,
// line, opcode and meta pass through Map/Remap unchanged; a string
// position that is not configured is left absent (nil) in the result.
// Only string positions may be configured.
func NewMapper(positions ...Position) *Mapper {
	m := &Mapper{
		positions: make(map[Position]bool, len(positions)),
		dicts:     make(map[Position][]string),
		index:     make(map[Position]map[string]int),
	}
	for _, p := range positions {
		if !stringPositions[p] {
			panic(fmt.Sprintf("sample: mapper position %v is not a string field", p))
		}
		m.positions[p] = true
		m.dicts[p] = nil
		m.index[p] = make(map[string]int)
	}
	return m
}

// DefaultMapper configures the positions the sample parser, formatter
// and aggregator compress: binary, file, function, basicblock,
// instruction (spec.md §4.D "State").
func DefaultMapper() *Mapper {
	return NewMapper(Binary, File, Function, BasicBlock, Instruction)
}

func (m *Mapper) intern(p Position, s *string) *int {
	if s == nil {
		return nil
	}
	idx, ok := m.index[p][*s]
	if !ok {
		idx = len(m.dicts[p])
		m.dicts[p] = append(m.dicts[p], *s)
		m.index[p][*s] = idx
	}
	return &idx
}

func (m *Mapper) lookup(p Position, idx *int) (*string, error) {
	if idx == nil {
		return nil, nil
	}
	dict := m.dicts[p]
	if *idx < 0 || *idx >= len(dict) {
		return nil, fmt.Errorf("sample: mapper invalid remap request for value %d in position %s", *idx, Names[p])
	}
	return &dict[*idx], nil
}

// Map compresses the configured positions of v, appending any new
// string values to their dictionary.
func (m *Mapper) Map(v Vector) Mapped {
	out := Mapped{PC: v.PC, Line: v.Line, Opcode: v.Opcode, Meta: v.Meta}
	if m.positions[Binary] {
		out.Binary = m.intern(Binary, v.Binary)
	}
	if m.positions[File] {
		out.File = m.intern(File, v.File)
	}
	if m.positions[Function] {
		out.Function = m.intern(Function, v.Function)
	}
	if m.positions[BasicBlock] {
		out.BasicBlock = m.intern(BasicBlock, v.BasicBlock)
	}
	if m.positions[Instruction] {
		out.Instruction = m.intern(Instruction, v.Instruction)
	}
	return out
}

// Remap substitutes the stored strings back in, the inverse of Map.
// remap(map(x)) must equal x for every x (spec.md §8 "Mapper
// round-trip").
func (m *Mapper) Remap(mp Mapped) (Vector, error) {
	out := Vector{PC: mp.PC, Line: mp.Line, Opcode: mp.Opcode, Meta: mp.Meta}
	var err error
	if m.positions[Binary] {
		if out.Binary, err = m.lookup(Binary, mp.Binary); err != nil {
			return Vector{}, err
		}
	}
	if m.positions[File] {
		if out.File, err = m.lookup(File, mp.File); err != nil {
			return Vector{}, err
		}
	}
	if m.positions[Function] {
		if out.Function, err = m.lookup(Function, mp.Function); err != nil {
			return Vector{}, err
		}
	}
	if m.positions[BasicBlock] {
		if out.BasicBlock, err = m.lookup(BasicBlock, mp.BasicBlock); err != nil {
			return Vector{}, err
		}
	}
	if m.positions[Instruction] {
		if out.Instruction, err = m.lookup(Instruction, mp.Instruction); err != nil {
			return Vector{}, err
		}
	}
	return out, nil
}

// Maps snapshots the dictionaries as they stand; this is what a
// profile persists alongside samples that reference it.
func (m *Mapper) Maps() map[Position][]string {
	out := make(map[Position][]string, len(m.dicts))
	for p, dict := range m.dicts {
		cp := make([]string, len(dict))
		copy(cp, dict)
		out[p] = cp
	}
	return out
}

// SetMaps restores dictionaries from a snapshot, e.g. one loaded back
// from a persisted profile.
func (m *Mapper) SetMaps(maps map[Position][]string) {
	m.dicts = make(map[Position][]string, len(maps))
	m.index = make(map[Position]map[string]int, len(maps))
	m.positions = make(map[Position]bool, len(maps))
	for p, dict := range maps {
		cp := make([]string, len(dict))
		copy(cp, dict)
		m.dicts[p] = cp
		idx := make(map[string]int, len(cp))
		for i, s := range cp {
			idx[s] = i
		}
		m.index[p] = idx
		m.positions[p] = true
	}
}
