package annotate

// FilterOptions is the four-level (binary/function/basicblock/
// instruction) by three-metric (time/energy/samples) threshold matrix
// of annotateProfile.py, surfaced in spec.md §4.H as "output rendering
// thresholds". Binary thresholds filter both tables; the rest filter
// only the asm table, since the source table has no function/
// basicblock granularity. All default to 0 (no filtering) except
// FunctionSampleThreshold, which defaults to 1.
type FilterOptions struct {
	BinaryTimeThreshold   float64
	BinaryEnergyThreshold float64
	BinarySampleThreshold float64

	FunctionTimeThreshold   float64
	FunctionEnergyThreshold float64
	FunctionSampleThreshold float64

	BasicBlockTimeThreshold   float64
	BasicBlockEnergyThreshold float64
	BasicBlockSampleThreshold float64

	InstructionTimeThreshold   float64
	InstructionEnergyThreshold float64
	InstructionSampleThreshold float64
}

// DefaultFilterOptions matches annotateProfile.py's argparse defaults:
// every threshold 0 except function-sample-threshold, which is 1.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{FunctionSampleThreshold: 1}
}

type groupKey struct {
	binary, function, basicblock string
	pc                           uint64
}

func groupSum(rows []*AsmRow, keyOf func(*AsmRow) groupKey, metric func(*AsmRow) float64) map[groupKey]float64 {
	sums := make(map[groupKey]float64)
	for _, r := range rows {
		sums[keyOf(r)] += metric(r)
	}
	return sums
}

func byBinary(r *AsmRow) groupKey      { return groupKey{binary: r.Binary} }
func byFunction(r *AsmRow) groupKey    { return groupKey{binary: r.Binary, function: r.Function} }
func byBasicBlock(r *AsmRow) groupKey {
	return groupKey{binary: r.Binary, function: r.Function, basicblock: r.BasicBlock}
}
func byInstruction(r *AsmRow) groupKey { return groupKey{binary: r.Binary, pc: r.PC} }

func timeOf(r *AsmRow) float64    { return r.Time }
func energyOf(r *AsmRow) float64  { return r.Energy }
func samplesOf(r *AsmRow) float64 { return r.Samples }

func filterAsmRows(rows []*AsmRow, keyOf func(*AsmRow) groupKey, metric func(*AsmRow) float64, threshold float64) []*AsmRow {
	if threshold <= 0 {
		return rows
	}
	sums := groupSum(rows, keyOf, metric)
	out := rows[:0:0]
	for _, r := range rows {
		if sums[keyOf(r)] >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func filterSourceRows(rows []*SourceRow, threshold float64, metric func(*SourceRow) float64) []*SourceRow {
	if threshold <= 0 {
		return rows
	}
	sums := make(map[string]float64)
	for _, r := range rows {
		sums[r.Binary] += metric(r)
	}
	out := rows[:0:0]
	for _, r := range rows {
		if sums[r.Binary] >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func sourceTime(r *SourceRow) float64    { return r.Time }
func sourceEnergy(r *SourceRow) float64  { return r.Energy }
func sourceSamples(r *SourceRow) float64 { return r.Samples }

// Filter applies opts to t in place, in the same order
// annotateProfile.py does: binary thresholds (both tables), then
// function, basicblock and instruction thresholds (asm table only).
func Filter(t *Tables, opts FilterOptions) {
	t.Asm = filterAsmRows(t.Asm, byBinary, timeOf, opts.BinaryTimeThreshold)
	t.Asm = filterAsmRows(t.Asm, byBinary, energyOf, opts.BinaryEnergyThreshold)
	t.Asm = filterAsmRows(t.Asm, byBinary, samplesOf, opts.BinarySampleThreshold)

	t.Source = filterSourceRows(t.Source, opts.BinaryTimeThreshold, sourceTime)
	t.Source = filterSourceRows(t.Source, opts.BinaryEnergyThreshold, sourceEnergy)
	t.Source = filterSourceRows(t.Source, opts.BinarySampleThreshold, sourceSamples)

	t.Asm = filterAsmRows(t.Asm, byFunction, timeOf, opts.FunctionTimeThreshold)
	t.Asm = filterAsmRows(t.Asm, byFunction, energyOf, opts.FunctionEnergyThreshold)
	t.Asm = filterAsmRows(t.Asm, byFunction, samplesOf, opts.FunctionSampleThreshold)

	t.Asm = filterAsmRows(t.Asm, byBasicBlock, timeOf, opts.BasicBlockTimeThreshold)
	t.Asm = filterAsmRows(t.Asm, byBasicBlock, energyOf, opts.BasicBlockEnergyThreshold)
	t.Asm = filterAsmRows(t.Asm, byBasicBlock, samplesOf, opts.BasicBlockSampleThreshold)

	t.Asm = filterAsmRows(t.Asm, byInstruction, timeOf, opts.InstructionTimeThreshold)
	t.Asm = filterAsmRows(t.Asm, byInstruction, energyOf, opts.InstructionEnergyThreshold)
	t.Asm = filterAsmRows(t.Asm, byInstruction, samplesOf, opts.InstructionSampleThreshold)
}

// Level controls output depth: spec.md §4.H's rendering step groups
// rows up to binary, function or instruction granularity, with a
// separate level for rows whose binary isn't the profiled target
// (annotateProfile.py's --level/--external-level).
type Level int

const (
	LevelBinary Level = iota
	LevelFunction
	LevelInstruction
)

// RenderDepth picks the level to render binary at, given the target
// binary that full profiles were built against.
func RenderDepth(binary, target string, internal, external Level) Level {
	if binary == target {
		return internal
	}
	return external
}
