package sample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatterFormat(t *testing.T) {
	m := DefaultMapper()
	v := Vector{
		PC:       0x1008,
		Binary:   Str("hello"),
		File:     Str("/usr/src/hello/main.c"),
		Function: Str("f2"),
		Line:     UInt(42),
	}
	mapped := m.Map(v)

	f := NewFormatter(m.Maps())
	remapped, err := f.Remap(mapped)
	require.NoError(t, err)

	got := f.Format(remapped, []Position{Binary, Function}, ":", "_unknown")
	require.Equal(t, "hello:f2", got)

	got = f.Format(remapped, []Position{PC}, ":", "_unknown")
	require.Equal(t, "0x1008", got)

	got = f.Format(remapped, []Position{File}, ":", "_unknown")
	require.Equal(t, "main.c", got)
}

func TestFormatterAbsentField(t *testing.T) {
	f := NewFormatter(map[Position][]string{})
	v := Vector{PC: 0x10}
	got := f.Format(v, []Position{Binary, Function}, ":", "_unknown")
	require.Equal(t, "_unknown:_unknown", got)
}

func TestResolveKeys(t *testing.T) {
	keys, err := ResolveKeys([]string{"binary", "function"})
	require.NoError(t, err)
	require.Equal(t, []Position{Binary, Function}, keys)

	_, err = ResolveKeys([]string{"bogus"})
	require.Error(t, err)
}
