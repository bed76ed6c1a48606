package sample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(pc uint64, binary, function string, line uint64) Vector {
	return Vector{
		PC:       pc,
		Binary:   Str(binary),
		Function: Str(function),
		Line:     UInt(line),
	}
}

func TestMapperRoundTrip(t *testing.T) {
	m := DefaultMapper()

	vectors := []Vector{
		vec(0x1000, "hello", "f1", 10),
		vec(0x1004, "hello", "f2", 20),
		vec(0x1008, "libc.so", "memcpy", 0),
		vec(0x1000, "hello", "f1", 10), // repeat, must reuse indices
	}

	for _, v := range vectors {
		mapped := m.Map(v)
		back, err := m.Remap(mapped)
		require.NoError(t, err)
		require.True(t, v.Equal(back), "remap(map(x)) must equal x for %v, got %v", v, back)
	}
}

func TestMapperStableIndices(t *testing.T) {
	m := DefaultMapper()

	a := m.Map(vec(0x1, "hello", "f1", 1))
	b := m.Map(vec(0x2, "hello", "f1", 2))

	require.Equal(t, *a.Binary, *b.Binary)
	require.Equal(t, *a.Function, *b.Function)
}

func TestMapperSnapshotRestore(t *testing.T) {
	m := DefaultMapper()
	v := vec(0x42, "hello", "main", 7)
	mapped := m.Map(v)

	snap := m.Maps()

	restored := NewMapper()
	restored.SetMaps(snap)
	back, err := restored.Remap(mapped)
	require.NoError(t, err)
	require.True(t, v.Equal(back))
}

func TestMapperInvalidRemap(t *testing.T) {
	m := DefaultMapper()
	bogus := 99
	_, err := m.Remap(Mapped{Binary: &bogus})
	require.Error(t, err)
}

func TestPanicsOnNonStringPosition(t *testing.T) {
	require.Panics(t, func() {
		NewMapper(PC)
	})
}
