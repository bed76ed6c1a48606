package elfcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"pperf/internal/filelock"
	"pperf/pkg/pperf"
	"pperf/pkg/sample"
	"pperf/pkg/toolchain"
)

// BuildOptions configures one ELF cache build (spec.md §4.B "Build
// algorithm").
type BuildOptions struct {
	DisplayName              string
	UnwindInline             bool
	IncludeSource            bool
	BasicBlockReconstruction bool
	SearchPaths              []string
	DynmapPath               string
}

// Builder runs the build algorithm against a toolchain.Adapter.
type Builder struct {
	Adapter toolchain.Adapter
	Env     *pperf.Environment
}

// NewBuilder constructs a Builder over the given adapter and
// environment.
func NewBuilder(adapter toolchain.Adapter, env *pperf.Environment) *Builder {
	return &Builder{Adapter: adapter, Env: env}
}

func contentHash(elfPath string) (string, error) {
	f, err := os.Open(elfPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Load builds or loads-and-returns the cache for elfPath. It is safe
// for concurrent use across distinct binaries; callers needing
// in-process sharing of a single cache object across goroutines for
// the *same* binary should go through Manager instead.
func (b *Builder) Load(ctx context.Context, elfPath string, opts BuildOptions) (*Cache, error) {
	toolchainID, err := b.Adapter.ToolchainID(ctx)
	if err != nil {
		return nil, err
	}

	if b.Env.DisableCache {
		return b.build(ctx, elfPath, opts, toolchainID)
	}

	hash, err := contentHash(elfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing %s: %v", pperf.ErrMissingBinary, elfPath, err)
	}
	if err := b.Env.EnsureCacheDir(); err != nil {
		return nil, err
	}
	path := fileName(b.Env.CacheDir, elfPath, opts.UnwindInline, hash)

	lock, err := filelock.Acquire(path)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	if c, err := load(path, toolchainID); err == nil {
		c.CacheFile = path
		return c, nil
	}

	c, err := b.build(ctx, elfPath, opts, toolchainID)
	if err != nil {
		return nil, err
	}
	c.CacheFile = path
	if err := persist(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *Builder) build(ctx context.Context, elfPath string, opts BuildOptions, toolchainID string) (*Cache, error) {
	displayName := opts.DisplayName
	if displayName == "" {
		displayName = filepath.Base(elfPath)
	}

	arch, err := b.Adapter.Arch(ctx, elfPath)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		Version:        pperf.CacheVersion,
		BinaryBasename: filepath.Base(elfPath),
		DisplayName:    displayName,
		Architecture:   arch,
		BuildDate:      time.Now(),
		ToolchainID:    toolchainID,
		UnwindInline:   opts.UnwindInline,
		Entries:        make(map[uint64]sample.Vector),
		Asm:            make(map[uint64]string),
		Source:         make(map[string][]string),
	}

	sections, err := b.Adapter.Sections(ctx, elfPath)
	if err != nil {
		return nil, err
	}

	functionCounter := -1
	for _, section := range sections {
		err := b.Adapter.Disassemble(ctx, elfPath, section, func(inst toolchain.Instruction) error {
			meta := sample.MetaNormal
			if inst.FunctionOffset == nil {
				functionCounter++
				meta = sample.MetaFunctionHead | sample.MetaBasicBlockHead
			}
			c.Entries[inst.PC] = sample.Vector{
				PC:         inst.PC,
				Binary:     sample.Str(displayName),
				Function:   sample.Str(inst.FunctionLabel),
				BasicBlock: sample.Str(fmt.Sprintf("f%d", functionCounter)),
				Instruction: sample.Str(inst.Mnemonic),
				Opcode:     sample.UInt(inst.Opcode),
				Meta:       meta,
			}
			c.Asm[inst.PC] = inst.RenderedLine()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	pcs := make([]uint64, 0, len(c.Entries))
	for pc := range c.Entries {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })

	resolutions, err := b.Adapter.Resolve(ctx, elfPath, pcs, opts.UnwindInline)
	if err != nil {
		return nil, err
	}
	for pc, res := range resolutions {
		v := c.Entries[pc]
		if res.Function != "" {
			v.Function = sample.Str(res.Function)
		}
		if res.File != "" {
			v.File = sample.Str(res.File)
		}
		if res.Line != 0 {
			v.Line = sample.UInt(res.Line)
		}
		c.Entries[pc] = v
	}

	if opts.IncludeSource {
		b.loadSources(c, opts.SearchPaths)
	}

	if opts.BasicBlockReconstruction && KnownArch(arch) {
		unresolved, err := reconstructBasicBlocks(c, arch, opts.DynmapPath)
		if err != nil {
			return nil, err
		}
		c.UnresolvedBranch = unresolved
		if unresolved > 0 {
			b.Env.Log().Warn("unresolved static branch targets", "binary", displayName, "count", unresolved)
		}
	}

	return c, nil
}

// loadSources reads the source text for every distinct file referenced
// by the cache, per spec.md §4.B step 5: try the literal path, then
// walk the suffix of the path upward under each search path, decoding
// with a fallback encoding chain.
func (b *Builder) loadSources(c *Cache, searchPaths []string) {
	files := make(map[string]bool)
	for _, v := range c.Entries {
		if v.File != nil {
			files[*v.File] = true
		}
	}

	for file := range files {
		lines, err := readSource(file, searchPaths)
		if err != nil {
			b.Env.Log().Warn("could not read source file", "file", file, "error", err)
			continue
		}
		c.Source[file] = lines
	}
}

func readSource(path string, searchPaths []string) ([]string, error) {
	candidates := []string{path}
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, root := range searchPaths {
		for i := range parts {
			candidates = append(candidates, filepath.Join(root, filepath.Join(parts[i:]...)))
		}
	}

	var lastErr error
	for _, cand := range candidates {
		data, err := os.ReadFile(cand)
		if err != nil {
			lastErr = err
			continue
		}
		return decodeSource(data), nil
	}
	return nil, lastErr
}

// decodeSource tries a fixed ordered list of text encodings. Only
// utf-8 and the single-byte latin-1/ascii fallback are implemented
// directly; the remaining encodings spec.md names (utf-16-*, utf-32-*,
// iso-8859-*) are multi-byte or locale-specific enough that no
// dependency in the example pack covers them, so a file that needs one
// falls back to the latin-1 byte-for-byte mapping rather than failing
// outright.
func decodeSource(data []byte) []string {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		text = string(runes)
	}
	lines := strings.Split(text, "\n")
	// index 1..N, so prepend a throwaway element at index 0
	return append([]string{""}, lines...)
}
