// Program pperf-annotate builds the asm and source tables for a
// target binary and its dependencies from their ELF caches, folds one
// or more persisted full profiles onto them, applies the threshold
// filter matrix, and prints both tables.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pperf/pkg/annotate"
	"pperf/pkg/config"
	"pperf/pkg/elfcache"
	"pperf/pkg/fullprofile"
	"pperf/pkg/pperf"
	"pperf/pkg/toolchain"
)

func main() {
	var (
		configPath    string
		elfs          []string
		mean          bool
		level         string
		externalLevel string

		filterOpts = annotate.DefaultFilterOptions()
	)

	root := &cobra.Command{
		Use:   "pperf-annotate --elf BINARY [--elf BINARY...] PROFILE...",
		Short: "fold full profiles onto per-instruction and per-source-line tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(elfs) == 0 {
				return fmt.Errorf("pperf-annotate: at least one --elf is required")
			}

			env, err := pperf.NewEnvironmentFromOS()
			if err != nil {
				return err
			}
			if env, err = config.Load(configPath, env); err != nil {
				return err
			}

			manager := elfcache.NewManager(toolchain.NewCLIAdapter(env), env)
			ctx := cmd.Context()

			cacheByBinary := make(map[string]*elfcache.Cache, len(elfs))
			for _, elf := range elfs {
				c, err := manager.Get(ctx, elf, elfcache.BuildOptions{IncludeSource: true})
				if err != nil {
					return fmt.Errorf("pperf-annotate: cache %s: %w", elf, err)
				}
				cacheByBinary[c.DisplayName] = c
			}

			var profiles []*fullprofile.Profile
			var target string
			for _, path := range args {
				p, err := fullprofile.Load(path)
				if err != nil {
					return fmt.Errorf("pperf-annotate: %w", err)
				}
				if target == "" {
					target = p.Target
				}
				profiles = append(profiles, p)
			}

			mode := annotate.CombineAdd
			if mean {
				mode = annotate.CombineMean
			}

			tables, err := annotate.Build(cacheByBinary, profiles, mode, annotate.FoldOptions{Weight: 1})
			if err != nil {
				return fmt.Errorf("pperf-annotate: %w", err)
			}

			annotate.Filter(tables, filterOpts)

			internal, err := parseLevel(level)
			if err != nil {
				return err
			}
			external, err := parseLevel(externalLevel)
			if err != nil {
				return err
			}

			printTables(tables, target, internal, external)
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "optional pperf.yaml override file")
	root.Flags().StringArrayVar(&elfs, "elf", nil, "ELF binary to cache and annotate against (repeatable)")
	root.Flags().BoolVar(&mean, "mean", false, "average across input profiles instead of summing")
	root.Flags().StringVar(&level, "level", "instruction", "render depth for the target binary: binary, function, or instruction")
	root.Flags().StringVar(&externalLevel, "external-level", "binary", "render depth for non-target binaries")

	root.Flags().Float64Var(&filterOpts.BinaryTimeThreshold, "binary-time-threshold", filterOpts.BinaryTimeThreshold, "drop binaries below this time")
	root.Flags().Float64Var(&filterOpts.BinaryEnergyThreshold, "binary-energy-threshold", filterOpts.BinaryEnergyThreshold, "drop binaries below this energy")
	root.Flags().Float64Var(&filterOpts.BinarySampleThreshold, "binary-sample-threshold", filterOpts.BinarySampleThreshold, "drop binaries below this sample count")
	root.Flags().Float64Var(&filterOpts.FunctionTimeThreshold, "function-time-threshold", filterOpts.FunctionTimeThreshold, "drop functions below this time")
	root.Flags().Float64Var(&filterOpts.FunctionEnergyThreshold, "function-energy-threshold", filterOpts.FunctionEnergyThreshold, "drop functions below this energy")
	root.Flags().Float64Var(&filterOpts.FunctionSampleThreshold, "function-sample-threshold", filterOpts.FunctionSampleThreshold, "drop functions below this sample count")
	root.Flags().Float64Var(&filterOpts.BasicBlockTimeThreshold, "basicblock-time-threshold", filterOpts.BasicBlockTimeThreshold, "drop basic blocks below this time")
	root.Flags().Float64Var(&filterOpts.BasicBlockEnergyThreshold, "basicblock-energy-threshold", filterOpts.BasicBlockEnergyThreshold, "drop basic blocks below this energy")
	root.Flags().Float64Var(&filterOpts.BasicBlockSampleThreshold, "basicblock-sample-threshold", filterOpts.BasicBlockSampleThreshold, "drop basic blocks below this sample count")
	root.Flags().Float64Var(&filterOpts.InstructionTimeThreshold, "instruction-time-threshold", filterOpts.InstructionTimeThreshold, "drop instructions below this time")
	root.Flags().Float64Var(&filterOpts.InstructionEnergyThreshold, "instruction-energy-threshold", filterOpts.InstructionEnergyThreshold, "drop instructions below this energy")
	root.Flags().Float64Var(&filterOpts.InstructionSampleThreshold, "instruction-sample-threshold", filterOpts.InstructionSampleThreshold, "drop instructions below this sample count")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func parseLevel(s string) (annotate.Level, error) {
	switch s {
	case "binary":
		return annotate.LevelBinary, nil
	case "function":
		return annotate.LevelFunction, nil
	case "instruction":
		return annotate.LevelInstruction, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

func printTables(t *annotate.Tables, target string, internal, external annotate.Level) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "binary\tfunction\tbasicblock\tline\tinstruction\targs\ttime\tenergy\tsamples")
	for _, r := range t.Asm {
		depth := annotate.RenderDepth(r.Binary, target, internal, external)
		fn, bb, ins, args := r.Function, r.BasicBlock, r.Instruction, r.Args
		if depth == annotate.LevelBinary {
			fn, bb, ins, args = "", "", "", ""
		} else if depth == annotate.LevelFunction {
			bb, ins, args = "", "", ""
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%g\t%g\t%g\n",
			r.Binary, fn, bb, r.Line, ins, args, r.Time, r.Energy, r.Samples)
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "binary\tfile\tline\ttime\tenergy\tsamples\tsource")
	for _, r := range t.Source {
		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%g\t%g\t%s\n", r.Binary, r.File, r.Line, r.Time, r.Energy, r.Samples, r.Source)
	}
	w.Flush()
}
