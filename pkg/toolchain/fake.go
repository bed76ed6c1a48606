package toolchain

import "context"

// FakeAdapter is a fixture-backed Adapter for tests that never
// shells out to a real toolchain.
type FakeAdapter struct {
	ArchValue        string
	SectionList      []Section
	Instructions     map[string][]Instruction // keyed by section name
	Resolutions      map[uint64]Resolution
	Demangled        map[string]string
	ToolchainVersion string
}

func (f *FakeAdapter) Arch(ctx context.Context, elf string) (string, error) {
	return f.ArchValue, nil
}

func (f *FakeAdapter) Sections(ctx context.Context, elf string) ([]Section, error) {
	return f.SectionList, nil
}

func (f *FakeAdapter) Disassemble(ctx context.Context, elf string, section Section, fn func(Instruction) error) error {
	for _, inst := range f.Instructions[section.Name] {
		if err := fn(inst); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeAdapter) Resolve(ctx context.Context, elf string, pcs []uint64, unwindInline bool) (map[uint64]Resolution, error) {
	out := make(map[uint64]Resolution, len(pcs))
	for _, pc := range pcs {
		if res, ok := f.Resolutions[pc]; ok {
			out[pc] = res
		}
	}
	return out, nil
}

func (f *FakeAdapter) Demangle(ctx context.Context, name string) (string, error) {
	if d, ok := f.Demangled[name]; ok {
		return d, nil
	}
	return name, nil
}

func (f *FakeAdapter) ToolchainID(ctx context.Context) (string, error) {
	return f.ToolchainVersion, nil
}

var _ Adapter = (*FakeAdapter)(nil)
