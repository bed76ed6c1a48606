package vmmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pperf/pkg/elfcache"
	"pperf/pkg/pperf"
	"pperf/pkg/toolchain"
)

func TestParseUnknownPCIsNonFatal(t *testing.T) {
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	mgr := elfcache.NewManager(&toolchain.FakeAdapter{}, env)
	p := NewParser(nil, mgr, nil)

	mapped, err := p.Parse(context.Background(), 0xdeadbeef, false)
	require.NoError(t, err)
	require.Nil(t, mapped.Binary)
	require.Equal(t, uint64(0xdeadbeef), mapped.PC)
}

func TestParseKernelPC(t *testing.T) {
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	mgr := elfcache.NewManager(&toolchain.FakeAdapter{}, env)
	p := NewParser(nil, mgr, nil)

	kernel := Binary{Name: "_kernel", Kernel: true, Static: true, LoadStart: 0x1000, LoadEnd: 0x2000}
	entries := []kallsymsEntry{
		{addr: 0x1500, name: "do_syscall"},
		{addr: 0x1000, name: "_start"},
	}
	p.WithKallsyms(kernel, entries)

	mapped, err := p.Parse(context.Background(), 0x1600, false)
	require.NoError(t, err)

	remapped, err := p.mapper.Remap(mapped)
	require.NoError(t, err)
	require.Equal(t, "_kernel", *remapped.Binary)
	require.Equal(t, "do_syscall", *remapped.Function)
}

func TestParsePIEBinaryKeepsEffectivePC(t *testing.T) {
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	adapter := &toolchain.FakeAdapter{
		ArchValue:   "AArch64",
		SectionList: []toolchain.Section{{Name: ".text", VAddr: 0x1000}},
		Instructions: map[string][]toolchain.Instruction{
			".text": {{PC: 0x1010, Mnemonic: "nop"}},
		},
		ToolchainVersion: "v1",
	}
	mgr := elfcache.NewManager(adapter, env)

	// A non-static (PIE) binary loaded at a runtime address that
	// differs from the file-relative address its cache is keyed by.
	binaries := []Binary{{
		Name: "a.out", Path: "/bin/pie", Static: false,
		SectionOffset: 0x1000, LoadStart: 0x500000, LoadEnd: 0x600000,
	}}
	p := NewParser(binaries, mgr, nil)

	mapped, err := p.Parse(context.Background(), 0x500010, false)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1010), mapped.PC, "mapped PC must be the file-relative address the cache is keyed by, not the raw runtime pc")
}

func TestParseMemoizesRepeatLookups(t *testing.T) {
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	adapter := &toolchain.FakeAdapter{
		ArchValue: "AArch64",
		SectionList: []toolchain.Section{{Name: ".text"}},
		Instructions: map[string][]toolchain.Instruction{
			".text": {{PC: 0x0, Mnemonic: "nop"}},
		},
		ToolchainVersion: "v1",
	}
	mgr := elfcache.NewManager(adapter, env)

	binaries := []Binary{{Name: "a.out", Path: "/bin/true", Static: true, LoadStart: 0x400000, LoadEnd: 0x500000}}
	p := NewParser(binaries, mgr, nil)

	first, err := p.Parse(context.Background(), 0x400000, false)
	require.NoError(t, err)
	second, err := p.Parse(context.Background(), 0x400000, false)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
