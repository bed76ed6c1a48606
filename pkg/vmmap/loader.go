package vmmap

import (
	"bufio"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pperf/pkg/pperf"
)

// LoadVMMap reads a VMMap file of "HEX_ADDR HEX_SIZE BASENAME" lines
// (spec.md §4.D "VMMap load"), resolving each basename against
// searchPaths the way the ELF cache resolves source files.
func LoadVMMap(path string, searchPaths []string) ([]Binary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vmmap: open %s: %w", path, err)
	}
	defer f.Close()

	var binaries []Binary
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("vmmap: malformed VMMap line %q", line)
		}
		loadStart, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("vmmap: bad address %q: %w", fields[0], err)
		}
		size, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("vmmap: bad size %q: %w", fields[1], err)
		}
		basename := fields[2]

		resolved, err := resolveUnderSearchPaths(basename, searchPaths)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", pperf.ErrMissingBinary, basename)
		}

		desc, err := describeELF(resolved, basename, loadStart, size)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pperf.ErrMissingBinary, basename, err)
		}
		binaries = append(binaries, desc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vmmap: reading %s: %w", path, err)
	}
	return binaries, nil
}

func resolveUnderSearchPaths(basename string, searchPaths []string) (string, error) {
	if st, err := os.Stat(basename); err == nil && !st.IsDir() {
		return basename, nil
	}
	for _, root := range searchPaths {
		cand := filepath.Join(root, basename)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("no match for %q under %d search paths", basename, len(searchPaths))
}

// describeELF opens path as an ELF file and derives static?/section-offset
// from its header and first loadable executable segment.
func describeELF(path, displayName string, loadStart, size uint64) (Binary, error) {
	f, err := elf.Open(path)
	if err != nil {
		return Binary{}, err
	}
	defer f.Close()

	static := f.Type == elf.ET_EXEC

	var sectionOffset uint64
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && prog.Flags&elf.PF_X != 0 {
			sectionOffset = prog.Off
			break
		}
	}

	return Binary{
		Name:          displayName,
		Path:          path,
		Static:        static,
		SectionOffset: sectionOffset,
		LoadStart:     loadStart,
		Size:          size,
		LoadEnd:       loadStart + size,
	}, nil
}

// kallsymsEntry is one (address, name) triple, matching spec.md §4.D
// "kallsyms load".
type kallsymsEntry struct {
	addr uint64
	name string
}

// LoadKallsyms reads a kallsyms file of "HEX_ADDR TYPE NAME" lines and
// returns a synthetic kernel Binary spanning [min, max] alongside the
// sorted-descending symbol table used to resolve offsets within it.
func LoadKallsyms(path string) (Binary, []kallsymsEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Binary{}, nil, fmt.Errorf("vmmap: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []kallsymsEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil {
			continue
		}
		entries = append(entries, kallsymsEntry{addr: addr, name: fields[2]})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return Binary{}, nil, fmt.Errorf("vmmap: reading %s: %w", path, err)
	}
	if len(entries) == 0 {
		return Binary{}, nil, fmt.Errorf("vmmap: %s: no kallsyms entries", path)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].addr > entries[j].addr })

	min, max := entries[len(entries)-1].addr, entries[0].addr
	kernel := Binary{
		Name:      "_kernel",
		Kernel:    true,
		Static:    true,
		LoadStart: min,
		Size:      max - min,
		LoadEnd:   max,
	}
	return kernel, entries, nil
}

// resolveKallsyms linear-scans entries (sorted descending by address)
// for the greatest offset <= pcEff.
func resolveKallsyms(entries []kallsymsEntry, pcEff uint64) (string, bool) {
	for _, e := range entries {
		if e.addr <= pcEff {
			return e.name, true
		}
	}
	return "", false
}
