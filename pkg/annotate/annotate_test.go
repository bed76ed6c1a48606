package annotate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pperf/pkg/elfcache"
	"pperf/pkg/fullprofile"
	"pperf/pkg/sample"
)

// helloCache and helloProfile mirror the aggregator's scenario-1 setup
// (binary "hello", pc 0x1000 = f1, pc 0x1008 = f2) so the bucket fold
// can be checked against the same expected numbers.
func helloCache() *elfcache.Cache {
	return &elfcache.Cache{
		DisplayName: "hello",
		Entries: map[uint64]sample.Vector{
			0x1000: {PC: 0x1000, Binary: sample.Str("hello"), Function: sample.Str("f1"), BasicBlock: sample.Str("f0"), File: sample.Str("/src/hello.c"), Line: sample.UInt(10)},
			0x1008: {PC: 0x1008, Binary: sample.Str("hello"), Function: sample.Str("f2"), BasicBlock: sample.Str("f1"), File: sample.Str("/src/hello.c"), Line: sample.UInt(20)},
		},
		Asm: map[uint64]string{
			0x1000: "mov\tw0, #0x1",
			0x1008: "ret",
		},
		Source: map[string][]string{
			"/src/hello.c": {"", "line1", "", "", "", "", "", "", "", "", "int f1(void) {", "", "", "", "", "", "", "", "", "", "int f2(void) {"},
		},
	}
}

func helloFullProfile() *fullprofile.Profile {
	m := sample.DefaultMapper()
	f1 := m.Map(sample.Vector{PC: 0x1000, Binary: sample.Str("hello"), Function: sample.Str("f1")})
	f2 := m.Map(sample.Vector{PC: 0x1008, Binary: sample.Str("hello"), Function: sample.Str("f2")})

	return &fullprofile.Profile{
		Name:   "hello-run",
		Target: "hello",
		Cpus:   1,
		Samples: []fullprofile.EmittedSample{
			{PMU: 1.0, WallTime: 0.0, Threads: []fullprofile.ThreadSample{{ThreadID: 1, CPUTime: 0.0, MappedSample: f1}}},
			{PMU: 2.0, WallTime: 0.001, Threads: []fullprofile.ThreadSample{{ThreadID: 1, CPUTime: 0.001, MappedSample: f2}}},
		},
		Maps: m.Maps(),
	}
}

func TestBuildAsmTable(t *testing.T) {
	caches := map[string]*elfcache.Cache{"hello": helloCache()}
	rows := BuildAsmTable(caches)
	require.Len(t, rows, 2)

	byPC := make(map[uint64]*AsmRow)
	for _, r := range rows {
		byPC[r.PC] = r
	}
	require.Equal(t, "f1", byPC[0x1000].Function)
	require.Equal(t, "mov", byPC[0x1000].Instruction)
	require.Equal(t, "w0, #0x1", byPC[0x1000].Args)
	require.Equal(t, "ret", byPC[0x1008].Instruction)
	require.Equal(t, "", byPC[0x1008].Args)
}

func TestBuildSourceTable(t *testing.T) {
	caches := map[string]*elfcache.Cache{"hello": helloCache()}
	rows := BuildSourceTable(caches)
	require.Len(t, rows, 20) // lines 1..20, index 0 unused

	require.Equal(t, "line1", rows[0].Source)
	require.EqualValues(t, 1, rows[0].Line)
}

// TestFoldMatchesAggregateAttribution checks that the bucket fold uses
// the same previous-key attribution as aggregate.Fold: the elapsed
// wall-time interval is credited to the pc observed at the *previous*
// sample, not the one it closes out.
func TestFoldMatchesAggregateAttribution(t *testing.T) {
	p := helloFullProfile()
	buckets := make(map[BucketKey]*bucket)
	require.NoError(t, Fold(buckets, p, FoldOptions{CPUTimeMode: false}))

	f1 := buckets[BucketKey{Binary: "hello", PC: 0x1000}]
	require.NotNil(t, f1)
	require.InDelta(t, 0.001, f1.time, 1e-12)
	require.InDelta(t, 1.0, f1.samples, 1e-12)
	require.InDelta(t, 0.002, f1.energy, 1e-12)

	f2 := buckets[BucketKey{Binary: "hello", PC: 0x1008}]
	require.NotNil(t, f2)
	require.InDelta(t, 0.0, f2.time, 1e-12)
	require.InDelta(t, 1.0, f2.samples, 1e-12)
}

func TestBuildJoinsZeroForUnobservedBuckets(t *testing.T) {
	caches := map[string]*elfcache.Cache{"hello": helloCache()}
	// Cache has a third, never-sampled PC; it must join to zero, not
	// be dropped from the table.
	caches["hello"].Entries[0x1010] = sample.Vector{PC: 0x1010, Binary: sample.Str("hello"), Function: sample.Str("f3")}
	caches["hello"].Asm[0x1010] = "nop"

	tables, err := Build(caches, []*fullprofile.Profile{helloFullProfile()}, CombineAdd, FoldOptions{})
	require.NoError(t, err)

	byPC := make(map[uint64]*AsmRow)
	for _, r := range tables.Asm {
		byPC[r.PC] = r
	}
	require.Contains(t, byPC, uint64(0x1010))
	require.Zero(t, byPC[0x1010].Time)
	require.Zero(t, byPC[0x1010].Samples)

	require.InDelta(t, 0.001, byPC[0x1000].Time, 1e-12)
}

func TestBuildSourceAggregatesSumAsmRows(t *testing.T) {
	caches := map[string]*elfcache.Cache{"hello": helloCache()}
	tables, err := Build(caches, []*fullprofile.Profile{helloFullProfile()}, CombineAdd, FoldOptions{})
	require.NoError(t, err)

	var line10 *SourceRow
	for _, r := range tables.Source {
		if r.Line == 10 {
			line10 = r
		}
	}
	require.NotNil(t, line10)
	require.InDelta(t, 0.001, line10.Time, 1e-12) // f1's asm row sums into its source line
}

func TestCombineMeanHalvesWeight(t *testing.T) {
	caches := map[string]*elfcache.Cache{"hello": helloCache()}
	profiles := []*fullprofile.Profile{helloFullProfile(), helloFullProfile()}

	added, err := Build(caches, profiles, CombineAdd, FoldOptions{})
	require.NoError(t, err)
	meaned, err := Build(caches, profiles, CombineMean, FoldOptions{})
	require.NoError(t, err)

	var addedF1, meanedF1 *AsmRow
	for _, r := range added.Asm {
		if r.PC == 0x1000 {
			addedF1 = r
		}
	}
	for _, r := range meaned.Asm {
		if r.PC == 0x1000 {
			meanedF1 = r
		}
	}
	require.InDelta(t, addedF1.Time/2, meanedF1.Time, 1e-12)
}

func TestFilterFunctionSampleThresholdDefault(t *testing.T) {
	rows := []*AsmRow{
		{Binary: "hello", Function: "f1", PC: 0x1000, Samples: 1},
		{Binary: "hello", Function: "f2", PC: 0x1008, Samples: 0},
	}
	tables := &Tables{Asm: rows}

	Filter(tables, DefaultFilterOptions())
	require.Len(t, tables.Asm, 1)
	require.Equal(t, "f1", tables.Asm[0].Function)
}

func TestFilterBinaryThresholdAppliesToBothTables(t *testing.T) {
	tables := &Tables{
		Asm: []*AsmRow{
			{Binary: "hello", Function: "f1", PC: 0x1000, Time: 0.5, File: "/src/hello.c", Line: 10},
			{Binary: "libc", Function: "memcpy", PC: 0x2000, Time: 0.1, File: "/src/libc.c", Line: 1},
		},
		Source: []*SourceRow{
			{Binary: "hello", File: "/src/hello.c", Line: 10, Time: 0.5},
			{Binary: "libc", File: "/src/libc.c", Line: 1, Time: 0.1},
		},
	}

	Filter(tables, FilterOptions{BinaryTimeThreshold: 0.2})
	require.Len(t, tables.Asm, 1)
	require.Equal(t, "hello", tables.Asm[0].Binary)
	require.Len(t, tables.Source, 1)
	require.Equal(t, "hello", tables.Source[0].Binary)
}

func TestRenderDepth(t *testing.T) {
	require.Equal(t, LevelInstruction, RenderDepth("hello", "hello", LevelInstruction, LevelBinary))
	require.Equal(t, LevelBinary, RenderDepth("libc", "hello", LevelInstruction, LevelBinary))
}
