package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pperf/pkg/pperf"
)

func TestLoadMissingFileKeepsEnv(t *testing.T) {
	env := &pperf.Environment{CacheDir: "/default"}
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), env)
	require.NoError(t, err)
	require.Equal(t, "/default", got.CacheDir)
}

func TestLoadOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pperf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cross_compile: aarch64-linux-gnu-
cache_dir: /var/cache/pperf
disable_cache: true
`), 0o644))

	env := &pperf.Environment{CacheDir: "/default"}
	got, err := Load(path, env)
	require.NoError(t, err)
	require.Equal(t, "aarch64-linux-gnu-", got.CrossCompilePrefix)
	require.Equal(t, "/var/cache/pperf", got.CacheDir)
	require.True(t, got.DisableCache)
	require.False(t, got.UnwindInline)
}

func TestLoadEmptyPathIsNoop(t *testing.T) {
	env := &pperf.Environment{CacheDir: "/default"}
	got, err := Load("", env)
	require.NoError(t, err)
	require.Same(t, env, got)
}
