// Package annotate joins folded full profiles onto the assembly and
// source tables built from ELF caches, producing per-instruction and
// per-source-line time/energy/sample aggregates (spec.md §4.H).
package annotate

import (
	"sort"

	"pperf/internal/binutils"
	"pperf/pkg/elfcache"
	"pperf/pkg/fullprofile"
	"pperf/pkg/sample"
)

// AsmRow is one row of the asm table: a cached PC's static fields plus
// its folded dynamic counters.
type AsmRow struct {
	PC          uint64
	Binary      string
	File        string
	Function    string
	BasicBlock  string
	Line        uint64
	Instruction string
	Args        string

	Time    float64
	Energy  float64
	Samples float64
}

// SourceRow is one row of the source table: one (binary, file,
// line-number) with its source text and the asm rows' counters summed
// over that key.
type SourceRow struct {
	Binary string
	File   string
	Line   uint64
	Source string

	Time    float64
	Energy  float64
	Samples float64
}

// Tables holds the two tables of spec.md §4.H, built once and then
// folded/filtered in place.
type Tables struct {
	Asm    []*AsmRow
	Source []*SourceRow
}

// BuildAsmTable builds one row per cached PC across every supplied
// cache, copying pc/binary/file/function/basicblock/line/instruction
// and splitting the rendered assembly into an argument string (spec.md
// §4.H "asm").
func BuildAsmTable(caches map[string]*elfcache.Cache) []*AsmRow {
	var rows []*AsmRow
	for binary, cache := range caches {
		pcs := make([]uint64, 0, len(cache.Entries))
		for pc := range cache.Entries {
			pcs = append(pcs, pc)
		}
		sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })

		for _, pc := range pcs {
			v := cache.Entries[pc]
			mnemonic, args := binutils.SplitArgs(cache.Asm[pc])

			row := &AsmRow{
				PC:          pc,
				Binary:      binary,
				Function:    derefOr(v.Function, ""),
				BasicBlock:  derefOr(v.BasicBlock, ""),
				Instruction: mnemonic,
				Args:        args,
			}
			if v.File != nil {
				row.File = *v.File
			}
			if v.Line != nil {
				row.Line = *v.Line
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// BuildSourceTable builds one row per (binary, file, line-number) for
// every file whose source text was captured by a cache (spec.md §4.H
// "source"). Source[file][0] is unused (cache lines are 1-indexed).
func BuildSourceTable(caches map[string]*elfcache.Cache) []*SourceRow {
	var rows []*SourceRow
	for binary, cache := range caches {
		files := make([]string, 0, len(cache.Source))
		for f := range cache.Source {
			files = append(files, f)
		}
		sort.Strings(files)

		for _, file := range files {
			lines := cache.Source[file]
			for n := 1; n < len(lines); n++ {
				rows = append(rows, &SourceRow{
					Binary: binary,
					File:   file,
					Line:   uint64(n),
					Source: lines[n],
				})
			}
		}
	}
	return rows
}

// BucketKey identifies one (binary, pc) fold bucket.
type BucketKey struct {
	Binary string
	PC     uint64
}

type bucket struct {
	time, energy, samples float64
}

// FoldOptions configures one profile's contribution to the bucket
// fold, mirroring aggregate.FoldOptions minus the per-key formatting
// step spec.md §4.H says the annotator skips.
type FoldOptions struct {
	AccountLatency bool
	CPUTimeMode    bool
	Weight         float64
}

// Fold folds one full profile's samples into buckets keyed by
// (binary, pc), using the same per-sample formulas as
// aggregate.Fold — including crediting the elapsed wall-time interval
// closed by a sample to the *previous* observation's key per thread,
// since that is what the interval was actually spent on (spec.md §8
// scenario 1; see pkg/aggregate.Fold's doc comment for the full
// derivation). "samples" is counted against the current key.
func Fold(buckets map[BucketKey]*bucket, p *fullprofile.Profile, opts FoldOptions) error {
	formatter := sample.NewFormatter(p.Maps)

	avgLatency := 0.0
	if opts.AccountLatency && p.SampleCount > 0 {
		avgLatency = p.LatencyTime / float64(p.SampleCount)
	}

	type threadState struct {
		key  BucketKey
		have bool
	}
	lastByThread := make(map[uint32]threadState)

	w := opts.Weight
	if w == 0 {
		w = 1
	}

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
			key := BucketKey{Binary: derefOr(vec.Binary, ""), PC: vec.PC}

			b, ok := buckets[key]
			if !ok {
				b = &bucket{}
				buckets[key] = b
			}
			b.samples += w

			prev := lastByThread[th.ThreadID]
			if prev.have {
				pb := buckets[prev.key]
				pb.time += useTime * w
				pb.energy += s.PMU * cpuShare * useTime * w
			}
			lastByThread[th.ThreadID] = threadState{key: key, have: true}
		}
	}

	return nil
}

// CombineMode selects how multiple full profiles are folded together,
// matching aggregate.CombineMode's add/mean semantics.
type CombineMode int

const (
	CombineAdd CombineMode = iota
	CombineMean
)

// Weights returns the per-input weight for Build: mode add weights
// every input 1; mode mean weights every input 1/N.
func Weights(mode CombineMode, n int) float64 {
	if mode == CombineMean && n > 0 {
		return 1.0 / float64(n)
	}
	return 1
}

// Build constructs the asm/source tables from caches, folds profiles
// into (binary, pc) buckets, joins the buckets onto the asm table
// (missing buckets become zero), and sums asm rows over
// (binary, file, line) into the source table (spec.md §4.H).
func Build(caches map[string]*elfcache.Cache, profiles []*fullprofile.Profile, mode CombineMode, opts FoldOptions) (*Tables, error) {
	buckets := make(map[BucketKey]*bucket)
	for _, p := range profiles {
		o := opts
		o.Weight = Weights(mode, len(profiles))
		if err := Fold(buckets, p, o); err != nil {
			return nil, err
		}
	}

	asm := BuildAsmTable(caches)
	for _, row := range asm {
		if b, ok := buckets[BucketKey{Binary: row.Binary, PC: row.PC}]; ok {
			row.Time = b.time
			row.Energy = b.energy
			row.Samples = b.samples
		}
	}

	source := BuildSourceTable(caches)
	sourceIndex := make(map[sourceKey]*SourceRow, len(source))
	for _, row := range source {
		sourceIndex[sourceKey{row.Binary, row.File, row.Line}] = row
	}
	for _, row := range asm {
		if row.File == "" {
			continue
		}
		sr, ok := sourceIndex[sourceKey{row.Binary, row.File, row.Line}]
		if !ok {
			continue
		}
		sr.Time += row.Time
		sr.Energy += row.Energy
		sr.Samples += row.Samples
	}

	return &Tables{Asm: asm, Source: source}, nil
}

type sourceKey struct {
	binary string
	file   string
	line   uint64
}
