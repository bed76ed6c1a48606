// Package config provides an optional YAML override file layered on top
// of the environment variables of spec.md §6, for projects that want to
// check a pperf.yaml into version control instead of exporting shell
// variables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pperf/pkg/pperf"
)

// File is the shape of an optional pperf.yaml, mirroring spec.md §6's
// four environment variables.
type File struct {
	// CrossCompile is prepended to every toolchain binary name, e.g.
	// "aarch64-linux-gnu-". Maps to CROSS_COMPILE.
	CrossCompile string `yaml:"cross_compile"`

	// CacheDir is where ELF caches are persisted. Maps to PPERF_CACHE;
	// defaults to ~/.cache/pperf when neither is set.
	CacheDir string `yaml:"cache_dir"`

	// DisableCache maps to DISABLE_CACHE.
	DisableCache bool `yaml:"disable_cache"`

	// UnwindInline maps to UNWIND_INLINE.
	UnwindInline bool `yaml:"unwind_inline"`
}

// Load reads path (if it exists) and applies it on top of env, a
// baseline already populated from the OS environment
// (pperf.NewEnvironmentFromOS). A missing file is not an error: the
// environment-only configuration is used unchanged. Fields present in
// the file override whatever env already holds; booleans are only
// overridden when the file sets them true, since YAML can't otherwise
// distinguish "false" from "absent".
func Load(path string, env *pperf.Environment) (*pperf.Environment, error) {
	if path == "" {
		return env, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return env, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	if f.CrossCompile != "" {
		env.CrossCompilePrefix = f.CrossCompile
	}
	if f.CacheDir != "" {
		env.CacheDir = f.CacheDir
	}
	if f.DisableCache {
		env.DisableCache = true
	}
	if f.UnwindInline {
		env.UnwindInline = true
	}

	return env, nil
}
