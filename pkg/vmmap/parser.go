package vmmap

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"pperf/pkg/elfcache"
	"pperf/pkg/sample"
)

// memoCacheSize bounds the per-parser pc->mapped-sample memoization
// cache (spec.md §4.D "A per-parser LRU/hash cache").
const memoCacheSize = 4096

// Parser holds the state spec.md §4.D names: binary descriptors, an
// optional kernel symbol table, configured source search paths, an
// owned ELF cache manager, and an owned Listmapper over
// {binary, file, function, basicblock, instruction}.
type Parser struct {
	binaries    []Binary
	kallsyms    []kallsymsEntry
	kernel      Binary
	hasKernel   bool
	searchPaths []string

	caches *elfcache.Manager
	mapper *sample.Mapper

	cacheMap map[string]string // binary name -> cache filename
	memo     *lru.Cache[uint64, sample.Mapped]

	includeSource            bool
	basicBlockReconstruction bool
	dynmapPath               string
}

// NewParser builds a Parser over an already-loaded set of binary
// descriptors and an ELF cache manager.
func NewParser(binaries []Binary, caches *elfcache.Manager, searchPaths []string) *Parser {
	memo, _ := lru.New[uint64, sample.Mapped](memoCacheSize)
	return &Parser{
		binaries:    binaries,
		searchPaths: searchPaths,
		caches:      caches,
		mapper:      sample.DefaultMapper(),
		cacheMap:    make(map[string]string),
		memo:        memo,
	}
}

// WithKallsyms registers a kernel binary and its symbol table loaded
// via LoadKallsyms.
func (p *Parser) WithKallsyms(kernel Binary, entries []kallsymsEntry) *Parser {
	p.kernel = kernel
	p.kallsyms = entries
	p.hasKernel = true
	p.binaries = append(p.binaries, kernel)
	return p
}

// WithSourceOptions configures whether the ELF cache build underlying
// this parser reads source text and/or reconstructs basic blocks, and
// an optional dynmap CSV path.
func (p *Parser) WithSourceOptions(includeSource, basicBlockReconstruction bool, dynmapPath string) *Parser {
	p.includeSource = includeSource
	p.basicBlockReconstruction = basicBlockReconstruction
	p.dynmapPath = dynmapPath
	return p
}

// Mapper exposes the owned Listmapper so callers can snapshot its maps
// into a persisted profile.
func (p *Parser) Mapper() *sample.Mapper { return p.mapper }

// CacheMap snapshots binary-name -> cache-filename registrations made
// so far.
func (p *Parser) CacheMap() map[string]string {
	out := make(map[string]string, len(p.cacheMap))
	for k, v := range p.cacheMap {
		out[k] = v
	}
	return out
}

func (p *Parser) findBinary(pc uint64) (Binary, bool) {
	for _, b := range p.binaries {
		if b.Contains(pc) {
			return b, true
		}
	}
	return Binary{}, false
}

// Parse translates a runtime pc into a mapped sample (spec.md §4.D
// "Translation"). Unknown pcs are non-fatal; they produce an "unknown"
// sample (only pc set).
func (p *Parser) Parse(ctx context.Context, pc uint64, unwindInline bool) (sample.Mapped, error) {
	if v, ok := p.memo.Get(pc); ok {
		return v, nil
	}

	binary, ok := p.findBinary(pc)
	if !ok {
		mapped := p.mapper.Map(sample.Invalid(pc))
		p.memo.Add(pc, mapped)
		return mapped, nil
	}

	pcEff := binary.Translate(pc)

	if binary.Kernel {
		var vec sample.Vector
		if name, found := resolveKallsyms(p.kallsyms, pcEff); found {
			vec = sample.Vector{PC: pcEff, Binary: sample.Str(binary.Name), Function: sample.Str(name)}
		} else {
			vec = sample.WithBinary(pcEff, binary.Name)
		}
		mapped := p.mapper.Map(vec)
		p.memo.Add(pc, mapped)
		return mapped, nil
	}

	cache, err := p.caches.Get(ctx, binary.Path, elfcache.BuildOptions{
		DisplayName:              binary.Name,
		UnwindInline:             unwindInline,
		IncludeSource:            p.includeSource,
		BasicBlockReconstruction: p.basicBlockReconstruction,
		SearchPaths:              p.searchPaths,
		DynmapPath:               p.dynmapPath,
	})
	if err != nil {
		return sample.Mapped{}, err
	}
	if cache.CacheFile != "" {
		if _, seen := p.cacheMap[binary.Name]; !seen {
			p.cacheMap[binary.Name] = cache.CacheFile
		}
	}

	// vec.PC is already pcEff, the address the cache (and annotate.Build's
	// join) keys everything by: overwriting it with the
	// raw runtime pc would desync non-static binaries from their own
	// cache entries.
	vec, _ := cache.SampleFor(pcEff)
	mapped := p.mapper.Map(vec)
	p.memo.Add(pc, mapped)
	return mapped, nil
}
