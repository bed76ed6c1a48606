package binutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSectionHeaderLine(t *testing.T) {
	line := "  13 .text         0001a4f0  0000000000001000  0000000000001000  00001000  2**4\n                  CONTENTS, ALLOC, LOAD, READONLY, CODE"
	sec, ok := ParseSectionHeaderLine("  13 .text         0001a4f0  0000000000001000  0000000000001000  00001000  2**4  CONTENTS,ALLOC,LOAD,READONLY,CODE")
	require.True(t, ok)
	require.Equal(t, ".text", sec.Name)
	require.True(t, sec.Code)
	_ = line

	_, ok = ParseSectionHeaderLine("  14 .data  0000010  2**3  CONTENTS,ALLOC,LOAD,DATA")
	require.False(t, ok)
}

func TestParseDisassemblyLine(t *testing.T) {
	inst, ok := ParseDisassemblyLine("0000000000001000 <main> d10083ff \tsub\tsp, sp, #0x20")
	require.True(t, ok)
	require.Equal(t, uint64(0x1000), inst.PC)
	require.Equal(t, "sub", inst.Mnemonic)
	require.Equal(t, "sp, sp, #0x20", inst.Arguments)
	require.Nil(t, inst.FunctionOffset)

	inst, ok = ParseDisassemblyLine("0000000000001004 <main+0x4> 910003fd \tmov\tx29, sp")
	require.True(t, ok)
	require.NotNil(t, inst.FunctionOffset)
	require.Equal(t, uint64(4), *inst.FunctionOffset)
}

func TestRenderedLineRoundTrip(t *testing.T) {
	inst, ok := ParseDisassemblyLine("0000000000001008 <main+0x8> 94000000 \tbl\t0x2000 <helper>")
	require.True(t, ok)
	rendered := inst.RenderedLine()
	mnem, args := SplitArgs(rendered)
	require.Equal(t, "bl", mnem)
	require.Equal(t, "0x2000 <helper>", args)
}

func TestParseAddr2LineBlockNoInline(t *testing.T) {
	res, ok := ParseAddr2LineBlock([]string{"0x1000", "main", "/src/hello/main.c:12"})
	require.True(t, ok)
	require.Equal(t, "main", res.Function)
	require.Equal(t, "/src/hello/main.c", res.File)
	require.Equal(t, uint64(12), res.Line)
}

func TestParseAddr2LineBlockInlineKeepsLast(t *testing.T) {
	res, ok := ParseAddr2LineBlock([]string{
		"0x1000",
		"inlined_helper",
		"/src/hello/helper.c:4",
		"main",
		"/src/hello/main.c:20",
	})
	require.True(t, ok)
	require.Equal(t, "main", res.Function)
	require.Equal(t, "/src/hello/main.c", res.File)
	require.Equal(t, uint64(20), res.Line)
}

func TestParseAddr2LineBlockUnresolved(t *testing.T) {
	res, ok := ParseAddr2LineBlock([]string{"0x1000", "??", "??:0"})
	require.True(t, ok)
	require.Equal(t, "??", res.Function)
	require.Equal(t, "", res.File)
	require.Equal(t, uint64(0), res.Line)
}

func TestParseArchAndFileType(t *testing.T) {
	out := "Machine:                           AArch64\nType:                              DYN (Shared object file)\n"
	require.Equal(t, "AArch64", ParseArch(out))
	require.Equal(t, "DYN", ParseFileType(out))
}
