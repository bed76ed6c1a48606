package fullprofile

import (
	"fmt"
	"time"

	"github.com/google/pprof/profile"

	"pperf/pkg/sample"
)

// ExportPprof builds a google/pprof profile from the per-thread parsed
// PCs, the same shape the teacher's fillProfile builds from BPF stack
// traces: one Location per distinct PC, one Sample per thread entry,
// Mapping left nil (the caller doesn't have the Binary's load window
// here — see vmmap.Binary.ToPprofMapping for the richer path that
// does).
func (p *Profile) ExportPprof() (*profile.Profile, error) {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		TimeNanos:  time.Now().UnixNano(),
	}

	formatter := sample.NewFormatter(p.Maps)
	locationIndex := make(map[uint64]int)

	for _, s := range p.Samples {
		for _, th := range s.Threads {
			vec, err := formatter.Remap(th.MappedSample)
			if err != nil {
				return nil, fmt.Errorf("fullprofile: export pprof: %w", err)
			}

			idx, ok := locationIndex[vec.PC]
			if !ok {
				idx = len(prof.Location)
				funcName := "?"
				if vec.Function != nil {
					funcName = *vec.Function
				}
				fn := &profile.Function{
					ID:   uint64(idx + 1),
					Name: funcName,
				}
				prof.Function = append(prof.Function, fn)
				prof.Location = append(prof.Location, &profile.Location{
					ID:      uint64(idx + 1),
					Address: vec.PC,
					Line:    []profile.Line{{Function: fn}},
				})
				locationIndex[vec.PC] = idx
			}

			prof.Sample = append(prof.Sample, &profile.Sample{
				Value:    []int64{1},
				Location: []*profile.Location{prof.Location[idx]},
				Label:    map[string][]string{"thread": {fmt.Sprintf("%d", th.ThreadID)}},
			})
		}
	}

	return prof, nil
}
