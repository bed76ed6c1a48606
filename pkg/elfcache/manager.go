package elfcache

import (
	"context"
	"sync"

	"pperf/pkg/pperf"
	"pperf/pkg/toolchain"
)

// Manager shares a single in-memory Cache per (binary, mode) across
// concurrent readers after first load, per spec.md §4.B "Lookup
// contract": concurrent writers are already serialized by the file
// lock inside Builder.Load; Manager adds the in-process half of that
// guarantee so two goroutines parsing the same binary don't each pay
// the build cost.
type Manager struct {
	builder *Builder

	mu     sync.Mutex
	caches map[string]*Cache
}

// NewManager builds a Manager over the given adapter and environment.
func NewManager(adapter toolchain.Adapter, env *pperf.Environment) *Manager {
	return &Manager{
		builder: NewBuilder(adapter, env),
		caches:  make(map[string]*Cache),
	}
}

func cacheKey(elfPath string, unwindInline bool) string {
	if unwindInline {
		return "i:" + elfPath
	}
	return elfPath
}

// Get returns the shared Cache for elfPath, building it on first use.
func (m *Manager) Get(ctx context.Context, elfPath string, opts BuildOptions) (*Cache, error) {
	key := cacheKey(elfPath, opts.UnwindInline)

	m.mu.Lock()
	if c, ok := m.caches[key]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	c, err := m.builder.Load(ctx, elfPath, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.caches[key]; ok {
		return existing, nil
	}
	m.caches[key] = c
	return c, nil
}
