package aggregate

import (
	"sort"

	"pperf/pkg/pperf"
	"pperf/pkg/sample"
)

// FilterOptions configures the post-aggregation filtering pipeline of
// spec.md §4.G "Filtering", applied in the fixed order documented on
// Filter.
type FilterOptions struct {
	ExcludedBinaries  []string
	ExcludedFiles     []string
	ExcludedFunctions []string
	ExcludeExternal   bool

	MinTimeShare   float64 // 0 disables
	MinEnergyShare float64 // 0 disables

	TopNTime   int // 0 disables
	TopNEnergy int // 0 disables

	CumulativeTimeLimit   float64 // 0 disables
	CumulativeEnergyLimit float64 // 0 disables
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

// Filter applies, in order: excluded binaries/files/functions;
// excluded-external; time/energy contribution thresholds; top-N-by-time
// or top-N-by-energy; cumulative top-% by time or energy. It mutates p
// in place and returns pperf.ErrEmptyResult if nothing survives.
func Filter(p *Profile, opts FilterOptions) error {
	keys := orderedKeys(p)
	formatter := sample.NewFormatter(p.Maps)

	excludedBinaries := toSet(opts.ExcludedBinaries)
	excludedFiles := toSet(opts.ExcludedFiles)
	excludedFunctions := toSet(opts.ExcludedFunctions)

	if len(excludedBinaries) > 0 || len(excludedFiles) > 0 || len(excludedFunctions) > 0 {
		keys = filterKeys(keys, func(k string) bool {
			vec, err := formatter.Remap(p.Profile[k].Sample)
			if err != nil {
				return true
			}
			if vec.Binary != nil && excludedBinaries[*vec.Binary] {
				return false
			}
			if vec.File != nil && excludedFiles[*vec.File] {
				return false
			}
			if vec.Function != nil && excludedFunctions[*vec.Function] {
				return false
			}
			return true
		})
	}

	if opts.ExcludeExternal {
		keys = filterKeys(keys, func(k string) bool { return !p.Profile[k].External })
	}

	if opts.MinTimeShare > 0 {
		total := sumMetric(p, keys, func(e *Entry) float64 { return e.Time })
		keys = filterKeys(keys, func(k string) bool {
			return total == 0 || p.Profile[k].Time/total >= opts.MinTimeShare
		})
	}
	if opts.MinEnergyShare > 0 {
		total := sumMetric(p, keys, func(e *Entry) float64 { return e.Energy })
		keys = filterKeys(keys, func(k string) bool {
			return total == 0 || p.Profile[k].Energy/total >= opts.MinEnergyShare
		})
	}

	if opts.TopNTime > 0 {
		keys = sortByMetricDesc(p, keys, func(e *Entry) float64 { return e.Time })
		if len(keys) > opts.TopNTime {
			keys = keys[:opts.TopNTime]
		}
	}
	if opts.TopNEnergy > 0 {
		keys = sortByMetricDesc(p, keys, func(e *Entry) float64 { return e.Energy })
		if len(keys) > opts.TopNEnergy {
			keys = keys[:opts.TopNEnergy]
		}
	}

	if opts.CumulativeTimeLimit > 0 {
		keys = cumulativeTop(p, keys, opts.CumulativeTimeLimit, func(e *Entry) float64 { return e.Time })
	}
	if opts.CumulativeEnergyLimit > 0 {
		keys = cumulativeTop(p, keys, opts.CumulativeEnergyLimit, func(e *Entry) float64 { return e.Energy })
	}

	rebuild(p, keys)

	if len(p.Profile) == 0 {
		return pperf.ErrEmptyResult
	}
	return nil
}

// orderedKeys returns p's keys in first-observed order, defensively
// appending any key missing from Order (e.g. a Profile assembled by
// hand rather than via Fold/Combine).
func orderedKeys(p *Profile) []string {
	seen := make(map[string]bool, len(p.Order))
	keys := make([]string, 0, len(p.Profile))
	for _, k := range p.Order {
		if _, ok := p.Profile[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range p.Profile {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	return keys
}

func filterKeys(keys []string, keep func(string) bool) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if keep(k) {
			out = append(out, k)
		}
	}
	return out
}

func sumMetric(p *Profile, keys []string, metric func(*Entry) float64) float64 {
	var total float64
	for _, k := range keys {
		total += metric(p.Profile[k])
	}
	return total
}

// sortByMetricDesc sorts a copy of keys by metric descending, original
// iteration order (position within keys) breaking ties.
func sortByMetricDesc(p *Profile, keys []string, metric func(*Entry) float64) []string {
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		return metric(p.Profile[out[i]]) > metric(p.Profile[out[j]])
	})
	return out
}

// cumulativeTop sorts descending by metric and keeps the prefix whose
// cumulative share of the total first reaches limit (spec.md §8
// scenario 6).
func cumulativeTop(p *Profile, keys []string, limit float64, metric func(*Entry) float64) []string {
	sorted := sortByMetricDesc(p, keys, metric)
	total := sumMetric(p, keys, metric)
	if total == 0 {
		return sorted
	}

	var cum float64
	cut := len(sorted)
	for i, k := range sorted {
		cum += metric(p.Profile[k]) / total
		if cum >= limit {
			cut = i + 1
			break
		}
	}
	return sorted[:cut]
}

func rebuild(p *Profile, keys []string) {
	newProfile := make(map[string]*Entry, len(keys))
	for _, k := range keys {
		newProfile[k] = p.Profile[k]
	}
	p.Profile = newProfile
	p.Order = keys
}
