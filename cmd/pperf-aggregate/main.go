// Program pperf-aggregate folds one or more persisted full profiles
// into an aggregated profile, applies the filtering pipeline, and
// prints the result as a tab-separated table.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pperf/pkg/aggregate"
	"pperf/pkg/fullprofile"
	"pperf/pkg/sample"
)

func main() {
	var (
		out            string
		internalKeys   []string
		externalKeys   []string
		internalDelim  string
		externalDelim  string
		accountLatency bool
		cpuTimeMode    bool

		excludedBinaries  []string
		excludedFiles     []string
		excludedFunctions []string
		excludeExternal   bool
		minTimeShare      float64
		minEnergyShare    float64
		topNTime          int
		topNEnergy        int
		cumulativeTime    float64
		cumulativeEnergy  float64
	)

	root := &cobra.Command{
		Use:   "pperf-aggregate PROFILE...",
		Short: "fold one or more full profiles into an aggregated, filtered profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			internal, err := parsePositions(internalKeys)
			if err != nil {
				return err
			}
			external, err := parsePositions(externalKeys)
			if err != nil {
				return err
			}

			dst := &aggregate.Profile{Name: out}
			for _, path := range args {
				p, err := fullprofile.Load(path)
				if err != nil {
					return fmt.Errorf("pperf-aggregate: %w", err)
				}
				if dst.Target == "" {
					dst.Target = p.Target
				}
				if dst.Volts == 0 {
					dst.Volts = p.Volts
				}
				err = aggregate.Fold(dst, p, aggregate.FoldOptions{
					InternalKeys:   internal,
					InternalDelim:  internalDelim,
					ExternalKeys:   external,
					ExternalDelim:  externalDelim,
					AccountLatency: accountLatency,
					CPUTimeMode:    cpuTimeMode,
					Weight:         1,
				})
				if err != nil {
					return fmt.Errorf("pperf-aggregate: fold %s: %w", path, err)
				}
			}
			dst.Averaged = len(args)
			aggregate.FinishPostPass(dst)

			filterOpts := aggregate.FilterOptions{
				ExcludedBinaries:      excludedBinaries,
				ExcludedFiles:         excludedFiles,
				ExcludedFunctions:     excludedFunctions,
				ExcludeExternal:       excludeExternal,
				MinTimeShare:          minTimeShare,
				MinEnergyShare:        minEnergyShare,
				TopNTime:              topNTime,
				TopNEnergy:            topNEnergy,
				CumulativeTimeLimit:   cumulativeTime,
				CumulativeEnergyLimit: cumulativeEnergy,
			}
			if err := aggregate.Filter(dst, filterOpts); err != nil {
				return fmt.Errorf("pperf-aggregate: %w", err)
			}

			if out != "" {
				if err := dst.Save(out); err != nil {
					return fmt.Errorf("pperf-aggregate: %w", err)
				}
			}
			printTable(dst)
			return nil
		},
	}

	root.Flags().StringVar(&out, "out", "", "write the aggregated profile to this path (gob)")
	root.Flags().StringSliceVar(&internalKeys, "internal-keys", []string{"function"}, "fields that key entries for the target binary")
	root.Flags().StringSliceVar(&externalKeys, "external-keys", []string{"binary"}, "fields that key entries for non-target binaries")
	root.Flags().StringVar(&internalDelim, "internal-delim", "/", "delimiter joining internal key fields")
	root.Flags().StringVar(&externalDelim, "external-delim", "/", "delimiter joining external key fields")
	root.Flags().BoolVar(&accountLatency, "account-latency", false, "subtract average sampling latency from each interval")
	root.Flags().BoolVar(&cpuTimeMode, "cpu-time", false, "use per-thread CPU time instead of wall time")

	root.Flags().StringSliceVar(&excludedBinaries, "exclude-binary", nil, "drop entries for this binary")
	root.Flags().StringSliceVar(&excludedFiles, "exclude-file", nil, "drop entries for this source file")
	root.Flags().StringSliceVar(&excludedFunctions, "exclude-function", nil, "drop entries for this function")
	root.Flags().BoolVar(&excludeExternal, "exclude-external", false, "drop all non-target-binary entries")
	root.Flags().Float64Var(&minTimeShare, "min-time-share", 0, "drop entries below this share of total time")
	root.Flags().Float64Var(&minEnergyShare, "min-energy-share", 0, "drop entries below this share of total energy")
	root.Flags().IntVar(&topNTime, "top-time", 0, "keep only the top N entries by time")
	root.Flags().IntVar(&topNEnergy, "top-energy", 0, "keep only the top N entries by energy")
	root.Flags().Float64Var(&cumulativeTime, "cumulative-time", 0, "keep the smallest prefix by time reaching this share")
	root.Flags().Float64Var(&cumulativeEnergy, "cumulative-energy", 0, "keep the smallest prefix by energy reaching this share")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func parsePositions(names []string) ([]sample.Position, error) {
	out := make([]sample.Position, 0, len(names))
	for _, n := range names {
		pos, ok := sample.PositionByName(n)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", n)
		}
		out = append(out, pos)
	}
	return out, nil
}

func printTable(p *aggregate.Profile) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "key\ttime\tenergy\tpower\tsamples\texecs")
	for _, k := range p.Order {
		e := p.Profile[k]
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%g\n", e.Label, e.Time, e.Energy, e.Power, e.Samples, e.Execs)
	}
	w.Flush()
}
