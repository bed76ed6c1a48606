// Program pperf-compare loads a baseline aggregated profile and one or
// more candidates, computes pointwise errors and a reduced scalar per
// candidate, and prints the result.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pperf/pkg/aggregate"
	"pperf/pkg/compare"
)

func main() {
	var (
		baselinePath string
		names        []string
		metric       string
		errorFn      string
		reduceFn     string
	)

	root := &cobra.Command{
		Use:   "pperf-compare --baseline PROFILE CANDIDATE...",
		Short: "compare candidate aggregated profiles against a baseline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baselinePath == "" {
				return fmt.Errorf("pperf-compare: --baseline is required")
			}

			baseline, err := aggregate.Load(baselinePath)
			if err != nil {
				return fmt.Errorf("pperf-compare: baseline: %w", err)
			}

			candidates := make([]*aggregate.Profile, 0, len(args))
			for _, path := range args {
				c, err := aggregate.Load(path)
				if err != nil {
					return fmt.Errorf("pperf-compare: candidate %s: %w", path, err)
				}
				candidates = append(candidates, c)
			}

			m, err := parseMetric(metric)
			if err != nil {
				return err
			}

			result, err := compare.Compare(baseline, candidates, names, compare.Options{
				Metric:   m,
				ErrorFn:  errorFn,
				ReduceFn: reduceFn,
			})
			if err != nil {
				return fmt.Errorf("pperf-compare: %w", err)
			}

			printResult(result, errorFn, reduceFn)
			return nil
		},
	}

	root.Flags().StringVar(&baselinePath, "baseline", "", "baseline aggregated profile (gob)")
	root.Flags().StringSliceVar(&names, "name", nil, "display name for each candidate, in order")
	root.Flags().StringVar(&metric, "metric", "time", "metric to compare: time, energy, power, samples, or execs")
	root.Flags().StringVar(&errorFn, "error", "relative", "pointwise error function, empty to skip")
	root.Flags().StringVar(&reduceFn, "reduce", "weighted-mean", "reduction applied across keys, empty to skip")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func parseMetric(s string) (compare.Metric, error) {
	switch s {
	case "time":
		return compare.MetricTime, nil
	case "energy":
		return compare.MetricEnergy, nil
	case "power":
		return compare.MetricPower, nil
	case "samples":
		return compare.MetricSamples, nil
	case "execs":
		return compare.MetricExecs, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func printResult(r *compare.Result, errorFn, reduceFn string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	header := "key\tbaseline\tweight"
	for _, c := range r.Candidates {
		header += "\t" + c.Name
		if errorFn != "" {
			header += "\t" + c.Name + "(err)"
		}
	}
	fmt.Fprintln(w, header)

	for _, k := range r.Keys {
		row := fmt.Sprintf("%s\t%g\t%g", k, r.Baseline[k], r.Weights[k])
		for _, c := range r.Candidates {
			row += fmt.Sprintf("\t%g", c.Values[k])
			if errorFn != "" {
				row += fmt.Sprintf("\t%g", c.Errors[k])
			}
		}
		fmt.Fprintln(w, row)
	}
	w.Flush()

	if reduceFn != "" {
		fmt.Println()
		for _, c := range r.Candidates {
			fmt.Printf("%s: %s=%g\n", c.Name, reduceFn, c.Reduced)
		}
	}
}
