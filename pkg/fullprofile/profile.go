// Package fullprofile builds the in-memory full profile of spec.md §3
// by walking a decoded sample stream once (spec.md §4.F).
package fullprofile

import (
	"pperf/pkg/sample"
)

// ThreadSample is one per-thread entry of an emitted sample.
type ThreadSample struct {
	ThreadID     uint32
	CPUTime      float64
	MappedSample sample.Mapped
}

// EmittedSample is one record of Profile.Samples: spec.md §4.F's
// `⟨ pmu, wall-time − start, [⟨thread-id, cpu-time-delta, parse(pc)⟩] ⟩`.
type EmittedSample struct {
	PMU      float64
	WallTime float64
	Threads  []ThreadSample
}

// Profile is the full profile of spec.md §3.
type Profile struct {
	Version      string
	Name         string
	Target       string
	SampleCount  int
	SamplingTime float64
	LatencyTime  float64
	Volts        float64
	Cpus         int
	Energy       float64
	Power        float64
	Maps         map[sample.Position][]string
	CacheMap     map[string]string
	Toolchain    string
	Samples      []EmittedSample
	UnknownPCs   int
}
