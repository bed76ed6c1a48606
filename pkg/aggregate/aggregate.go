// Package aggregate folds full profiles into a keyed map of
// (time, energy, power, samples, execs) per key, and composes multiple
// folds with mean/add semantics (spec.md §4.G).
package aggregate

import (
	"pperf/pkg/fullprofile"
	"pperf/pkg/pperf"
	"pperf/pkg/sample"
)

// Entry is one per-key sub-aggregate (spec.md §3 "Aggregated profile").
// Samples and Execs are floats, not ints: spec.md §4.G "Combining
// runs" multiplies the whole tuple — including these counts — by a
// weight factor before accumulating, so a mean fold over N runs must
// keep fractional precision until the final render.
type Entry struct {
	Time     float64
	Energy   float64
	Power    float64
	Samples  float64
	Execs    float64
	Label    string
	External bool          // binary != target: formatted with ExternalKeys
	Sample   sample.Mapped // representative mapped sample for this key
}

// Profile is the aggregated profile of spec.md §3. Order records the
// sequence keys were first observed in, the tie-break Filter uses
// when sorting by a metric (spec.md §4.G "Filtering").
type Profile struct {
	Version  string
	Name     string
	Target   string
	Volts    float64
	Averaged int
	Profile  map[string]*Entry
	Maps     map[sample.Position][]string
	Order    []string
}

// FoldOptions configures one fold-profile-into-aggregate operation
// (spec.md §4.G "Operation: fold one profile into an aggregate").
type FoldOptions struct {
	InternalKeys  []sample.Position
	InternalDelim string
	ExternalKeys  []sample.Position
	ExternalDelim string
	AccountLatency bool
	CPUTimeMode    bool
	Weight         float64
}

// Fold folds one full profile into dst (creating dst.Profile entries as
// needed), per spec.md §4.G's per-sample formulas.
func Fold(dst *Profile, p *fullprofile.Profile, opts FoldOptions) error {
	if dst.Profile == nil {
		dst.Profile = make(map[string]*Entry)
	}
	if dst.Maps == nil {
		dst.Maps = p.Maps
	}
	if dst.Version == "" {
		dst.Version = pperf.AggregateVersion
	}

	formatter := sample.NewFormatter(p.Maps)

	avgLatency := 0.0
	if opts.AccountLatency && p.SampleCount > 0 {
		avgLatency = p.LatencyTime / float64(p.SampleCount)
	}

	type subEntry struct {
		time, energy float64
		samples      int
		execs        int
		label        string
		external     bool
		rep          sample.Mapped
	}
	sub := make(map[string]*subEntry)
	var subOrder []string

	type threadState struct {
		key  string
		have bool
	}
	lastByThread := make(map[uint32]threadState)

	// A sample only tells us where a thread's PC landed at the moment
	// it was taken; the elapsed wall-time since the previous sample was
	// spent wherever that thread was running *before* this observation.
	// So useTime/energy for the interval closed by sample i is credited
	// to the key observed at sample i-1 for that thread, while the
	// "samples" (and execs-transition) count is tracked against the key
	// observed at the current sample. See spec.md §8 scenario 1.
	for i, s := range p.Samples {
		activeCores := len(s.Threads)
		if p.Cpus > 0 && p.Cpus < activeCores {
			activeCores = p.Cpus
		}
		if activeCores == 0 {
			activeCores = 1
		}

		sampleWall := 0.0
		if i > 0 {
			sampleWall = s.WallTime - p.Samples[i-1].WallTime
		}

		for _, th := range s.Threads {
			var useTime float64
			if opts.CPUTimeMode {
				useTime = th.CPUTime
			} else {
				useTime = sampleWall
			}
			if opts.AccountLatency {
				useTime = useTime - avgLatency
				if useTime < 0 {
					useTime = 0
				}
			}

			cpuShare := 0.0
			if sampleWall != 0 {
				cpuShare = useTime / (sampleWall * float64(activeCores))
			}

			vec, err := formatter.Remap(th.MappedSample)
			if err != nil {
				return err
			}

			var key string
			isTarget := vec.Binary != nil && *vec.Binary == p.Target
			if isTarget {
				key = formatter.Format(vec, opts.InternalKeys, opts.InternalDelim, pperf.LabelUnknown)
			} else {
				key = formatter.Format(vec, opts.ExternalKeys, opts.ExternalDelim, pperf.LabelUnknown)
			}

			se, ok := sub[key]
			if !ok {
				se = &subEntry{label: key, rep: th.MappedSample, external: !isTarget}
				sub[key] = se
				subOrder = append(subOrder, key)
			}
			se.samples++

			prev := lastByThread[th.ThreadID]
			if prev.have {
				if prev.key != key {
					se.execs++
				}
				prevSe := sub[prev.key]
				prevSe.time += useTime
				prevSe.energy += s.PMU * cpuShare * useTime
			}
			lastByThread[th.ThreadID] = threadState{key: key, have: true}
		}
	}

	w := opts.Weight
	if w == 0 {
		w = 1
	}
	for _, key := range subOrder {
		se := sub[key]
		e, ok := dst.Profile[key]
		if !ok {
			e = &Entry{Label: se.label, Sample: se.rep, External: se.external}
			dst.Profile[key] = e
			dst.Order = append(dst.Order, key)
		}
		e.Time += se.time * w
		e.Energy += se.energy * w
		e.Samples += float64(se.samples) * w
		e.Execs += float64(se.execs) * w
	}

	return nil
}

// FinishPostPass derives power = energy/time for every key (spec.md
// §4.G "Post-pass"); time == 0 keys get power = 0.
func FinishPostPass(p *Profile) {
	for _, e := range p.Profile {
		if e.Time != 0 {
			e.Power = e.Energy / e.Time
		} else {
			e.Power = 0
		}
	}
}
