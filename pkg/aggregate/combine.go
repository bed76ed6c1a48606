package aggregate

import (
	"fmt"
	"log/slog"

	"pperf/pkg/pperf"
)

// CombineMode selects how multiple already-aggregated profiles are
// folded together (spec.md §4.G "Combining runs").
type CombineMode int

const (
	// CombineAdd sums every key's tuple across inputs.
	CombineAdd CombineMode = iota
	// CombineMean produces the weighted average across inputs, with
	// pre-aggregated inputs (Profile.Averaged > 1) contributing in
	// proportion to how many runs they already represent, so that
	// re-aggregating pre-aggregated profiles composes correctly.
	CombineMean
)

// Weights computes the per-input weight factor for Combine. Every
// input contributes as if it were Averaged runs (a raw, unaggregated
// profile counts as 1).
func Weights(mode CombineMode, profiles []*Profile) []float64 {
	counts := make([]int, len(profiles))
	total := 0
	for i, p := range profiles {
		c := p.Averaged
		if c <= 0 {
			c = 1
		}
		counts[i] = c
		total += c
	}

	w := make([]float64, len(profiles))
	for i := range profiles {
		switch mode {
		case CombineMean:
			w[i] = float64(counts[i]) / float64(total)
		default:
			w[i] = 1
		}
	}
	return w
}

// Combine folds inputs into dst per spec.md §4.G. Mismatched voltages
// across inputs are logged and otherwise ignored (dst keeps the first
// nonzero voltage seen); incompatible profile versions are fatal.
func Combine(dst *Profile, inputs []*Profile, mode CombineMode, logger *slog.Logger) error {
	if dst.Profile == nil {
		dst.Profile = make(map[string]*Entry)
	}
	if logger == nil {
		logger = slog.Default()
	}

	weights := Weights(mode, inputs)
	total := 0

	for i, p := range inputs {
		if dst.Version == "" {
			dst.Version = p.Version
		} else if p.Version != "" && p.Version != dst.Version {
			return fmt.Errorf("%w: %q vs %q", pperf.ErrVersionMismatch, dst.Version, p.Version)
		}

		if dst.Volts == 0 {
			dst.Volts = p.Volts
		} else if p.Volts != 0 && p.Volts != dst.Volts {
			logger.Warn("aggregate: mismatched input voltages", "expected", dst.Volts, "got", p.Volts, "profile", p.Name)
		}

		if dst.Maps == nil {
			dst.Maps = p.Maps
		}

		w := weights[i]
		for _, key := range orderedKeys(p) {
			e := p.Profile[key]
			de, ok := dst.Profile[key]
			if !ok {
				de = &Entry{Label: e.Label, Sample: e.Sample, External: e.External}
				dst.Profile[key] = de
				dst.Order = append(dst.Order, key)
			}
			de.Time += e.Time * w
			de.Energy += e.Energy * w
			de.Samples += e.Samples * w
			de.Execs += e.Execs * w
		}

		c := p.Averaged
		if c <= 0 {
			c = 1
		}
		total += c
	}

	if dst.Target == "" && len(inputs) > 0 {
		dst.Target = inputs[0].Target
	}
	dst.Averaged = total

	FinishPostPass(dst)
	return nil
}
