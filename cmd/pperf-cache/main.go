// Program pperf-cache warms the ELF cache for one or more binaries
// concurrently, the batch operation createCache.py performs one ELF at
// a time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"pperf/pkg/config"
	"pperf/pkg/elfcache"
	"pperf/pkg/pperf"
	"pperf/pkg/toolchain"
)

func main() {
	var (
		configPath               string
		unwindInline             bool
		includeSource            bool
		basicBlockReconstruction bool
		searchPaths              []string
		dynmapPath               string
		workers                  int
	)

	root := &cobra.Command{
		Use:   "pperf-cache ELF...",
		Short: "build or refresh the ELF cache for one or more binaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := pperf.NewEnvironmentFromOS()
			if err != nil {
				return err
			}
			if env, err = config.Load(configPath, env); err != nil {
				return err
			}
			if env.DisableCache {
				return fmt.Errorf("pperf-cache: caching is disabled via DISABLE_CACHE")
			}
			env.UnwindInline = env.UnwindInline || unwindInline

			builder := elfcache.NewBuilder(toolchain.NewCLIAdapter(env), env)
			opts := elfcache.BuildOptions{
				UnwindInline:             env.UnwindInline,
				IncludeSource:            includeSource,
				BasicBlockReconstruction: basicBlockReconstruction,
				SearchPaths:              searchPaths,
				DynmapPath:               dynmapPath,
			}

			return buildAll(cmd.Context(), builder, args, opts, workers)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "optional pperf.yaml override file")
	root.Flags().BoolVar(&unwindInline, "unwind-inline", false, "resolve the innermost frame of an inlined call chain")
	root.Flags().BoolVar(&includeSource, "include-source", false, "capture source text for cached PCs")
	root.Flags().BoolVar(&basicBlockReconstruction, "basic-blocks", false, "reconstruct basic blocks from static branch targets")
	root.Flags().StringSliceVar(&searchPaths, "search-path", nil, "additional roots to resolve source/binary paths under")
	root.Flags().StringVar(&dynmapPath, "dynmap", "", "path to a dynmap CSV of indirect branch targets")
	root.Flags().IntVar(&workers, "workers", 4, "number of ELF files to cache concurrently")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// buildAll runs one cache build per elf path over a bounded worker
// pool (spec.md §5's "concurrent cache builds across distinct
// binaries"): a plain WaitGroup fans out over a buffered job channel,
// no scheduling framework needed for this small a fan-out.
func buildAll(ctx context.Context, builder *elfcache.Builder, elfs []string, opts elfcache.BuildOptions, workers int) error {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(elfs))
	errs := make([]error, len(elfs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for elf := range jobs {
				idx := indexOf(elfs, elf)
				_, err := builder.Load(ctx, elf, opts)
				if err != nil {
					errs[idx] = fmt.Errorf("%s: %w", elf, err)
					continue
				}
				slog.Info("cached", "elf", elf)
			}
		}()
	}

	for _, elf := range elfs {
		jobs <- elf
	}
	close(jobs)
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			slog.Error("cache build failed", "error", err)
			failed = append(failed, elfs[i])
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("pperf-cache: failed to cache %d of %d binaries", len(failed), len(elfs))
	}
	return nil
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
