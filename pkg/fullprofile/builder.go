package fullprofile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pperf/pkg/pperf"
	"pperf/pkg/rawinput"
	"pperf/pkg/vmmap"
)

// Builder walks a rawinput.Reader once into a Profile, attaching
// per-thread parsed PCs via a vmmap.Parser (spec.md §4.F).
type Builder struct {
	Parser       *vmmap.Parser
	Env          *pperf.Environment
	UnwindInline bool
}

// NewBuilder constructs a Builder over an already-configured parser.
func NewBuilder(parser *vmmap.Parser, env *pperf.Environment, unwindInline bool) *Builder {
	return &Builder{Parser: parser, Env: env, UnwindInline: unwindInline}
}

func toPower(value float64, kind rawinput.PMUKind, volts float64) float64 {
	if kind == rawinput.PMUPower {
		return value
	}
	return value * volts
}

// Build walks reader to completion, returning the assembled Profile.
// reader supplies the decoded sample stream (spec.md §6 "Decoded
// sample stream").
func (b *Builder) Build(ctx context.Context, reader rawinput.Reader, name, target, toolchainID string) (*Profile, error) {
	prof := &Profile{
		Version:   pperf.ProfileVersion,
		Name:      name,
		Target:    target,
		Volts:     reader.Volts(),
		Cpus:      reader.Cpus(),
		Toolchain: toolchainID,
	}

	var (
		start     float64
		haveFirst bool
		prevWall  float64
		energy    float64
	)

	for {
		s, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fullprofile: decode sample: %w", err)
		}

		if !haveFirst {
			start = s.WallTime
			haveFirst = true
		}

		deltaWall := 0.0
		if len(prof.Samples) > 0 {
			deltaWall = s.WallTime - prevWall
		}
		prevWall = s.WallTime

		power := toPower(s.PMUValue, reader.PMUKind(), prof.Volts)
		energy += power * deltaWall

		threads := make([]ThreadSample, 0, len(s.Threads))
		for _, th := range s.Threads {
			mapped, err := b.Parser.Parse(ctx, th.PC, b.UnwindInline)
			if err != nil {
				return nil, fmt.Errorf("fullprofile: parse pc 0x%x: %w", th.PC, err)
			}
			threads = append(threads, ThreadSample{
				ThreadID:     th.ThreadID,
				CPUTime:      th.CPUTime,
				MappedSample: mapped,
			})
		}

		prof.Samples = append(prof.Samples, EmittedSample{
			PMU:      power,
			WallTime: s.WallTime - start,
			Threads:  threads,
		})
	}

	prof.SampleCount = len(prof.Samples)
	if n := len(prof.Samples); n > 0 {
		prof.SamplingTime = prof.Samples[n-1].WallTime
	}
	prof.Energy = energy
	if prof.SamplingTime != 0 {
		prof.Power = prof.Energy / prof.SamplingTime
	}

	prof.Maps = b.Parser.Mapper().Maps()
	prof.CacheMap = b.Parser.CacheMap()

	return prof, nil
}
