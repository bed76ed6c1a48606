// Package rawinput defines the Go struct shapes of the five input
// schemas spec.md §6 names. It is schema-only: no concrete decoder is
// implemented here, matching the distilled spec's explicit non-goal of
// live/on-wire decoding. pkg/fullprofile consumes a Reader producing
// these shapes; callers supply their own decoder.
package rawinput

// ThreadSample is one per-thread entry of a decoded sample.
type ThreadSample struct {
	ThreadID uint32
	CPUTime  float64 // seconds
	PC       uint64
}

// Sample is one record of the decoded sample stream.
type Sample struct {
	PMUValue float64 // power (W), current (A) or voltage (V); see PMUKind
	WallTime float64 // seconds, monotonically non-decreasing across a stream
	Threads  []ThreadSample
}

// PMUKind identifies what unit PMUValue carries, matching the pmu-size
// tag of the raw binary header.
type PMUKind int

const (
	PMUPower PMUKind = iota
	PMUCurrent
	PMUVoltage
)

// Reader is the decoder contract pkg/fullprofile builds against. Any
// concrete format (the PPerf raw binary header, a JSON export, a CSV
// trace) implements this by producing Samples in wall-time order.
type Reader interface {
	// Next returns the next decoded sample, or io.EOF when the stream
	// is exhausted.
	Next() (Sample, error)
	// PMUKind reports what unit this stream's PMUValue carries.
	PMUKind() PMUKind
	// Volts is the constant used to convert current/voltage readings
	// to power, when PMUKind() != PMUPower.
	Volts() float64
	// Cpus is the number of active cores configured for this capture,
	// used to bound activeCores in the aggregator.
	Cpus() int
}

// VMMapLine is one parsed row of a VMMap file (spec.md §6).
type VMMapLine struct {
	Addr     uint64
	Size     uint64
	Basename string
}

// KallsymsLine is one parsed row of a kallsyms file.
type KallsymsLine struct {
	Addr uint64
	Type string
	Name string
}

// DynmapEntry is one fromPc,toPc pair of a dynmap CSV.
type DynmapEntry struct {
	FromPC uint64
	ToPC   uint64
}

// RawHeader mirrors the PPerf raw profile binary header (spec.md §6
// "PPerf raw profile"). Magic selects the endianness/version variant;
// concrete decoding of the header and its records is out of scope here.
type RawHeader struct {
	Magic       uint32
	WallUS      uint64
	LatencyUS   uint64
	SampleCount uint64
	PMUSize     uint32
	VMMapCount  uint32
}

// RawVMMapRecord is one vmmap-count record trailing a PPerf raw
// profile: a 256-byte zero-padded label alongside its load window.
type RawVMMapRecord struct {
	Addr  uint64
	Size  uint64
	Label [256]byte
}
