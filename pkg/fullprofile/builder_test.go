package fullprofile

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"pperf/pkg/elfcache"
	"pperf/pkg/pperf"
	"pperf/pkg/rawinput"
	"pperf/pkg/toolchain"
	"pperf/pkg/vmmap"
)

type sliceReader struct {
	samples []rawinput.Sample
	i       int
	volts   float64
	cpus    int
}

func (r *sliceReader) Next() (rawinput.Sample, error) {
	if r.i >= len(r.samples) {
		return rawinput.Sample{}, io.EOF
	}
	s := r.samples[r.i]
	r.i++
	return s, nil
}
func (r *sliceReader) PMUKind() rawinput.PMUKind { return rawinput.PMUPower }
func (r *sliceReader) Volts() float64            { return r.volts }
func (r *sliceReader) Cpus() int                 { return r.cpus }

func u64p(v uint64) *uint64 { return &v }

func newHelloParser(t *testing.T) *vmmap.Parser {
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	adapter := &toolchain.FakeAdapter{
		ArchValue: "AArch64",
		SectionList: []toolchain.Section{{Name: ".text"}},
		Instructions: map[string][]toolchain.Instruction{
			".text": {
				{PC: 0x1000, Mnemonic: "mov", Arguments: "x0, #0x1"},
				{PC: 0x1004, Mnemonic: "bl", Arguments: "0x1008", FunctionOffset: u64p(4)},
				{PC: 0x1008, Mnemonic: "ret"},
			},
		},
		Resolutions: map[uint64]toolchain.Resolution{
			0x1000: {Function: "f1"},
			0x1008: {Function: "f2"},
		},
		ToolchainVersion: "fake-1",
	}
	mgr := elfcache.NewManager(adapter, env)
	binaries := []vmmap.Binary{
		{Name: "hello", Path: "/bin/hello", Static: true, LoadStart: 0x1000, LoadEnd: 0x2000},
	}
	return vmmap.NewParser(binaries, mgr, nil)
}

func TestBuildStaticTwoPCProfile(t *testing.T) {
	parser := newHelloParser(t)
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	b := NewBuilder(parser, env, false)

	reader := &sliceReader{
		volts: 1.0,
		cpus:  1,
		samples: []rawinput.Sample{
			{PMUValue: 1.0, WallTime: 0.0, Threads: []rawinput.ThreadSample{{ThreadID: 1, CPUTime: 0.0, PC: 0x1000}}},
			{PMUValue: 2.0, WallTime: 0.001, Threads: []rawinput.ThreadSample{{ThreadID: 1, CPUTime: 0.001, PC: 0x1008}}},
		},
	}

	prof, err := b.Build(context.Background(), reader, "hello-run", "hello", "fake-1")
	require.NoError(t, err)

	require.Equal(t, 2, prof.SampleCount)
	require.InDelta(t, 0.001, prof.SamplingTime, 1e-12)
	require.InDelta(t, 0.002, prof.Energy, 1e-12)
	require.InDelta(t, 2.0, prof.Power, 1e-12)

	require.Len(t, prof.Samples, 2)
	require.Equal(t, 0.0, prof.Samples[0].WallTime)
	require.InDelta(t, 0.001, prof.Samples[1].WallTime, 1e-12)
}

func TestWallTimeMonotonicity(t *testing.T) {
	parser := newHelloParser(t)
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	b := NewBuilder(parser, env, false)

	reader := &sliceReader{
		volts: 1.0,
		cpus:  1,
		samples: []rawinput.Sample{
			{PMUValue: 1.0, WallTime: 0.0, Threads: []rawinput.ThreadSample{{ThreadID: 1, PC: 0x1000}}},
			{PMUValue: 1.0, WallTime: 0.002, Threads: []rawinput.ThreadSample{{ThreadID: 1, PC: 0x1000}}},
			{PMUValue: 1.0, WallTime: 0.005, Threads: []rawinput.ThreadSample{{ThreadID: 1, PC: 0x1000}}},
		},
	}

	prof, err := b.Build(context.Background(), reader, "r", "hello", "fake-1")
	require.NoError(t, err)

	for i := 1; i < len(prof.Samples); i++ {
		require.LessOrEqual(t, prof.Samples[i-1].WallTime, prof.Samples[i].WallTime)
	}
}

func TestExportPprof(t *testing.T) {
	parser := newHelloParser(t)
	env := &pperf.Environment{CacheDir: t.TempDir(), DisableCache: true}
	b := NewBuilder(parser, env, false)

	reader := &sliceReader{
		volts: 1.0,
		cpus:  1,
		samples: []rawinput.Sample{
			{PMUValue: 1.0, WallTime: 0.0, Threads: []rawinput.ThreadSample{{ThreadID: 1, PC: 0x1000}}},
		},
	}
	prof, err := b.Build(context.Background(), reader, "r", "hello", "fake-1")
	require.NoError(t, err)

	pp, err := prof.ExportPprof()
	require.NoError(t, err)
	require.Len(t, pp.Sample, 1)
	require.Len(t, pp.Location, 1)
}
