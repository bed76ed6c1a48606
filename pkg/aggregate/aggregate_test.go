package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pperf/pkg/fullprofile"
	"pperf/pkg/pperf"
	"pperf/pkg/sample"
)

// helloProfile builds the full profile of spec.md §8 scenario 1
// directly (skipping vmmap/elfcache, which pkg/fullprofile's own tests
// already cover): two samples, one thread, PCs 0x1000 (f1) and 0x1008
// (f2) of binary "hello".
func helloProfile() *fullprofile.Profile {
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

func defaultOpts() FoldOptions {
	return FoldOptions{
		InternalKeys:  []sample.Position{sample.Binary, sample.Function},
		InternalDelim: ":",
		ExternalKeys:  []sample.Position{sample.Binary, sample.Function},
		ExternalDelim: ":",
	}
}

func TestFoldScenario1(t *testing.T) {
	p := helloProfile()
	dst := &Profile{Target: "hello"}

	require.NoError(t, Fold(dst, p, defaultOpts()))
	FinishPostPass(dst)

	f1 := dst.Profile["hello:f1"]
	require.NotNil(t, f1)
	require.InDelta(t, 0.001, f1.Time, 1e-12)
	require.InDelta(t, 1.0, f1.Samples, 1e-12)
	require.InDelta(t, 0.002, f1.Energy, 1e-12)

	f2 := dst.Profile["hello:f2"]
	require.NotNil(t, f2)
	require.InDelta(t, 0.0, f2.Time, 1e-12)
	require.InDelta(t, 1.0, f2.Samples, 1e-12)
	require.InDelta(t, 0.0, f2.Energy, 1e-12)
}

func TestCombineMeanLaw(t *testing.T) {
	p := helloProfile()
	opts := defaultOpts()

	single := &Profile{Target: "hello"}
	require.NoError(t, Fold(single, p, opts))
	FinishPostPass(single)

	a := &Profile{Target: "hello"}
	require.NoError(t, Fold(a, p, opts))
	b := &Profile{Target: "hello"}
	require.NoError(t, Fold(b, p, opts))

	mean := &Profile{}
	require.NoError(t, Combine(mean, []*Profile{a, b}, CombineMean, nil))

	for key, want := range single.Profile {
		got := mean.Profile[key]
		require.NotNil(t, got, "missing key %q", key)
		require.InDelta(t, want.Time, got.Time, 1e-12, key)
		require.InDelta(t, want.Energy, got.Energy, 1e-12, key)
		require.InDelta(t, want.Samples, got.Samples, 1e-12, key)
		require.InDelta(t, want.Power, got.Power, 1e-12, key)
	}
}

func TestCombineAddLaw(t *testing.T) {
	p := helloProfile()
	opts := defaultOpts()

	a := &Profile{Target: "hello"}
	require.NoError(t, Fold(a, p, opts))
	b := &Profile{Target: "hello"}
	require.NoError(t, Fold(b, p, opts))

	added := &Profile{}
	require.NoError(t, Combine(added, []*Profile{a, b}, CombineAdd, nil))

	f1 := added.Profile["hello:f1"]
	require.InDelta(t, 0.002, f1.Time, 1e-12)
	require.InDelta(t, 2.0, f1.Samples, 1e-12)
	require.InDelta(t, 0.004, f1.Energy, 1e-12)
}

func TestCombineReaggregatePreAveraged(t *testing.T) {
	p := helloProfile()
	opts := defaultOpts()

	a := &Profile{Target: "hello"}
	require.NoError(t, Fold(a, p, opts))
	b := &Profile{Target: "hello"}
	require.NoError(t, Fold(b, p, opts))

	meanOfTwo := &Profile{}
	require.NoError(t, Combine(meanOfTwo, []*Profile{a, b}, CombineMean, nil))
	require.Equal(t, 2, meanOfTwo.Averaged)

	c := &Profile{Target: "hello"}
	require.NoError(t, Fold(c, p, opts))

	reaggregated := &Profile{}
	require.NoError(t, Combine(reaggregated, []*Profile{meanOfTwo, c}, CombineMean, nil))

	single := &Profile{Target: "hello"}
	require.NoError(t, Fold(single, p, opts))

	for key, want := range single.Profile {
		got := reaggregated.Profile[key]
		require.NotNil(t, got)
		require.InDelta(t, want.Time, got.Time, 1e-9, key)
		require.InDelta(t, want.Samples, got.Samples, 1e-9, key)
	}
}

func TestPowerConsistency(t *testing.T) {
	p := helloProfile()
	dst := &Profile{Target: "hello"}
	require.NoError(t, Fold(dst, p, defaultOpts()))
	FinishPostPass(dst)

	for key, e := range dst.Profile {
		if e.Time == 0 {
			require.Zero(t, e.Power, key)
			continue
		}
		require.InDelta(t, e.Energy/e.Time, e.Power, 1e-12, key)
	}
}

func TestVersionMismatchIsFatal(t *testing.T) {
	a := &Profile{Version: "agg0.9", Profile: map[string]*Entry{}}
	b := &Profile{Version: "agg0.1", Profile: map[string]*Entry{}}

	dst := &Profile{}
	err := Combine(dst, []*Profile{a, b}, CombineAdd, nil)
	require.Error(t, err)
}

// TestFilterCumulativeTopTime matches spec.md §8 scenario 6: keys with
// time shares 0.5, 0.3, 0.15, 0.05; a cumulative limit of 0.8 retains
// the first two.
func TestFilterCumulativeTopTime(t *testing.T) {
	p := &Profile{
		Profile: map[string]*Entry{
			"a": {Label: "a", Time: 0.5},
			"b": {Label: "b", Time: 0.3},
			"c": {Label: "c", Time: 0.15},
			"d": {Label: "d", Time: 0.05},
		},
		Order: []string{"a", "b", "c", "d"},
	}

	require.NoError(t, Filter(p, FilterOptions{CumulativeTimeLimit: 0.8}))

	require.Len(t, p.Profile, 2)
	require.Contains(t, p.Profile, "a")
	require.Contains(t, p.Profile, "b")
}

func TestFilterTopN(t *testing.T) {
	p := &Profile{
		Profile: map[string]*Entry{
			"a": {Label: "a", Time: 0.1},
			"b": {Label: "b", Time: 0.5},
			"c": {Label: "c", Time: 0.3},
		},
		Order: []string{"a", "b", "c"},
	}

	require.NoError(t, Filter(p, FilterOptions{TopNTime: 1}))
	require.Len(t, p.Profile, 1)
	require.Contains(t, p.Profile, "b")
}

func TestFilterEmptyResultIsFatal(t *testing.T) {
	p := &Profile{
		Profile: map[string]*Entry{
			"a": {Label: "a", Time: 0.1},
		},
		Order: []string{"a"},
	}

	// No key's share of the total can ever reach 150%, so every key is
	// dropped regardless of how many there are.
	err := Filter(p, FilterOptions{MinTimeShare: 1.5})
	require.ErrorIs(t, err, pperf.ErrEmptyResult)
}

func TestFilterExcludedBinary(t *testing.T) {
	m := sample.DefaultMapper()
	mapped := m.Map(sample.Vector{PC: 0x1000, Binary: sample.Str("libc"), Function: sample.Str("memcpy")})

	p := &Profile{
		Profile: map[string]*Entry{
			"libc:memcpy": {Label: "libc:memcpy", Time: 1.0, Sample: mapped},
		},
		Order: []string{"libc:memcpy"},
		Maps:  m.Maps(),
	}

	err := Filter(p, FilterOptions{ExcludedBinaries: []string{"libc"}})
	require.ErrorIs(t, err, pperf.ErrEmptyResult)
}
