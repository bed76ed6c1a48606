package vmmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadKallsymsSortsDescendingAndSpansMinMax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kallsyms")
	content := "0x1000 T _start\n0xffff T do_syscall\n\n0x8000 t handler\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	kernel, entries, err := LoadKallsyms(path)
	require.NoError(t, err)
	require.True(t, kernel.Kernel)
	require.Equal(t, uint64(0x1000), kernel.LoadStart)
	require.Equal(t, uint64(0xffff), kernel.LoadEnd)

	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.GreaterOrEqual(t, entries[i-1].addr, entries[i].addr)
	}
}

func TestResolveKallsymsGreatestOffsetBelow(t *testing.T) {
	entries := []kallsymsEntry{
		{addr: 0x3000, name: "high"},
		{addr: 0x2000, name: "mid"},
		{addr: 0x1000, name: "low"},
	}
	name, ok := resolveKallsyms(entries, 0x2500)
	require.True(t, ok)
	require.Equal(t, "mid", name)

	_, ok = resolveKallsyms(entries, 0x500)
	require.False(t, ok)
}

func TestResolveUnderSearchPaths(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "libfoo.so")
	require.NoError(t, os.WriteFile(binPath, []byte("fake"), 0o644))

	resolved, err := resolveUnderSearchPaths("libfoo.so", []string{dir})
	require.NoError(t, err)
	require.Equal(t, binPath, resolved)

	_, err = resolveUnderSearchPaths("missing.so", []string{dir})
	require.Error(t, err)
}

func TestBinaryTranslate(t *testing.T) {
	static := Binary{Static: true}
	require.Equal(t, uint64(0x1234), static.Translate(0x1234))

	pie := Binary{Static: false, LoadStart: 0x400000, SectionOffset: 0x1000}
	require.Equal(t, uint64(0x1000+0x100), pie.Translate(0x400100))
}
