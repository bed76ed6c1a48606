// Package compare aligns two or more aggregate profiles by key and
// computes pointwise error and reduction statistics (spec.md §4.I),
// ported 1:1 from compareProfile.py's error/aggregate function tables.
package compare

import (
	"fmt"
	"math"

	"pperf/pkg/aggregate"
	"pperf/pkg/pperf"
)

// Metric selects which Entry field a comparison operates on.
type Metric int

const (
	MetricTime Metric = iota
	MetricEnergy
	MetricPower
	MetricSamples
	MetricExecs
)

func metricValue(e *aggregate.Entry, m Metric) float64 {
	if e == nil {
		return 0
	}
	switch m {
	case MetricTime:
		return e.Time
	case MetricEnergy:
		return e.Energy
	case MetricPower:
		return e.Power
	case MetricSamples:
		return e.Samples
	case MetricExecs:
		return e.Execs
	default:
		return 0
	}
}

// ErrorFunc is one pointwise comparison of a baseline value against a
// candidate value, weight is the key's share of the baseline total for
// the chosen metric (spec.md §4.I "weighted (× baseline share)").
type ErrorFunc func(baseline, value, weight float64) float64

func errorValue(baseline, value, _ float64) float64 { return value - baseline }
func absoluteValue(baseline, value, w float64) float64 {
	return math.Abs(errorValue(baseline, value, w))
}
func weightedValue(baseline, value, w float64) float64 {
	return errorValue(baseline, value, w) * w
}
func absoluteWeightedValue(baseline, value, w float64) float64 {
	return math.Abs(weightedValue(baseline, value, w))
}
func relativeValue(baseline, value, w float64) float64 {
	if baseline == 0 {
		return 0
	}
	return errorValue(baseline, value, w) / baseline
}
func absoluteRelativeValue(baseline, value, w float64) float64 {
	return math.Abs(relativeValue(baseline, value, w))
}
func weightedRelativeValue(baseline, value, w float64) float64 {
	return relativeValue(baseline, value, w) * w
}
func absoluteWeightedRelativeValue(baseline, value, w float64) float64 {
	return math.Abs(weightedRelativeValue(baseline, value, w))
}

// ErrorFuncs names every pointwise error function of spec.md §4.I.
var ErrorFuncs = map[string]ErrorFunc{
	"error":                 errorValue,
	"absolute":              absoluteValue,
	"relative":              relativeValue,
	"weighted":              weightedValue,
	"abs-weighted":          absoluteWeightedValue,
	"abs-relative":          absoluteRelativeValue,
	"weighted-relative":     weightedRelativeValue,
	"abs-weighted-relative": absoluteWeightedRelativeValue,
}

// ReduceFunc collapses a per-key slice of values down to one number.
// baselines/weights are supplied alongside values so rmse/weighted-rmse
// can compute their own (value-baseline) errors directly off raw
// values, ignoring whatever ErrorFunc was chosen (spec.md §4.I: "the
// last two operate on raw values, not on pre-applied errors").
type ReduceFunc func(baselines, values, weights []float64) float64

func reduceSum(_, values, _ []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func reduceMin(_, values, _ []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func reduceMax(_, values, _ []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func reduceMean(_, values, _ []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return reduceSum(nil, values, nil) / float64(len(values))
}

func reduceWeightedMean(_, values, weights []float64) float64 {
	var num, den float64
	for i, v := range values {
		num += v * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func reduceRMSE(baselines, values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for i, v := range values {
		e := errorValue(baselines[i], v, weights[i])
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(values)))
}

func reduceWeightedRMSE(baselines, values, weights []float64) float64 {
	var sum float64
	for i, v := range values {
		e := errorValue(baselines[i], v, weights[i])
		sum += e * e * weights[i]
	}
	return math.Sqrt(sum)
}

// ReduceFuncs names every reduction of spec.md §4.I.
var ReduceFuncs = map[string]ReduceFunc{
	"sum":           reduceSum,
	"min":           reduceMin,
	"max":           reduceMax,
	"mean":          reduceMean,
	"weighted-mean": reduceWeightedMean,
	"rmse":          reduceRMSE,
	"weighted-rmse": reduceWeightedRMSE,
}

// Options configures one Compare call.
type Options struct {
	Metric    Metric
	ErrorFn   string // key into ErrorFuncs; "" skips pointwise errors
	ReduceFn  string // key into ReduceFuncs; "" skips the reduction
	Inclusion aggregate.FilterOptions
}

// CandidateResult holds one candidate's comparison against the
// baseline: per-key raw values, per-key errors (if Options.ErrorFn was
// set) and the reduced scalar (if Options.ReduceFn was set).
type CandidateResult struct {
	Name    string
	Values  map[string]float64
	Errors  map[string]float64
	Reduced float64
}

// Result is the output of Compare: the stable, baseline-derived key
// order shared by every candidate, the baseline's own values/weights,
// and one CandidateResult per input.
type Result struct {
	Keys       []string
	Baseline   map[string]float64
	Weights    map[string]float64
	Candidates []CandidateResult
}

func copyForFilter(p *aggregate.Profile) *aggregate.Profile {
	cp := &aggregate.Profile{
		Version:  p.Version,
		Name:     p.Name,
		Target:   p.Target,
		Volts:    p.Volts,
		Averaged: p.Averaged,
		Maps:     p.Maps,
		Profile:  make(map[string]*aggregate.Entry, len(p.Profile)),
		Order:    append([]string(nil), p.Order...),
	}
	for k, v := range p.Profile {
		cp.Profile[k] = v
	}
	return cp
}

// Compare aligns baseline against every candidate by key (spec.md
// §4.I). names, if non-empty, labels each candidate result; a missing
// or short name list falls back to the candidate's profile Name.
func Compare(baseline *aggregate.Profile, candidates []*aggregate.Profile, names []string, opts Options) (*Result, error) {
	included := copyForFilter(baseline)
	if err := aggregate.Filter(included, opts.Inclusion); err != nil {
		return nil, err
	}

	keys := included.Order
	baselineValues := make(map[string]float64, len(keys))
	var baselineTotal float64
	for _, k := range keys {
		v := metricValue(included.Profile[k], opts.Metric)
		baselineValues[k] = v
		baselineTotal += v
	}

	weights := make(map[string]float64, len(keys))
	for _, k := range keys {
		if baselineTotal == 0 {
			weights[k] = 0
			continue
		}
		weights[k] = baselineValues[k] / baselineTotal
	}

	var errorFn ErrorFunc
	if opts.ErrorFn != "" {
		fn, ok := ErrorFuncs[opts.ErrorFn]
		if !ok {
			return nil, fmt.Errorf("compare: unknown error function %q", opts.ErrorFn)
		}
		errorFn = fn
	}

	var reduceFn ReduceFunc
	if opts.ReduceFn != "" {
		fn, ok := ReduceFuncs[opts.ReduceFn]
		if !ok {
			return nil, fmt.Errorf("compare: unknown reduce function %q", opts.ReduceFn)
		}
		reduceFn = fn
	}

	results := make([]CandidateResult, len(candidates))
	for ci, cand := range candidates {
		if cand.Version != "" && baseline.Version != "" && cand.Version != baseline.Version {
			return nil, fmt.Errorf("%w: baseline %q vs candidate %q", pperf.ErrVersionMismatch, baseline.Version, cand.Version)
		}

		name := cand.Name
		if ci < len(names) && names[ci] != "" {
			name = names[ci]
		}

		cr := CandidateResult{Name: name, Values: make(map[string]float64, len(keys))}
		baselinesSlice := make([]float64, len(keys))
		rawSlice := make([]float64, len(keys))
		reduceInputSlice := make([]float64, len(keys))
		weightsSlice := make([]float64, len(keys))

		if errorFn != nil {
			cr.Errors = make(map[string]float64, len(keys))
		}

		for i, k := range keys {
			v := metricValue(cand.Profile[k], opts.Metric)
			cr.Values[k] = v
			baselinesSlice[i] = baselineValues[k]
			weightsSlice[i] = weights[k]
			rawSlice[i] = v

			if errorFn != nil {
				e := errorFn(baselineValues[k], v, weights[k])
				cr.Errors[k] = e
				reduceInputSlice[i] = e
			} else {
				reduceInputSlice[i] = v
			}
		}

		if reduceFn != nil {
			// rmse/weighted-rmse always recompute their own error from
			// raw values (spec.md §4.I), ignoring any chosen ErrorFn.
			if opts.ReduceFn == "rmse" || opts.ReduceFn == "weighted-rmse" {
				cr.Reduced = reduceFn(baselinesSlice, rawSlice, weightsSlice)
			} else {
				cr.Reduced = reduceFn(baselinesSlice, reduceInputSlice, weightsSlice)
			}
		}

		results[ci] = cr
	}

	return &Result{
		Keys:       keys,
		Baseline:   baselineValues,
		Weights:    weights,
		Candidates: results,
	}, nil
}
