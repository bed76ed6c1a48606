package elfcache

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pperf/pkg/sample"
)

var hexTokenRe = regexp.MustCompile(`(?i)0x[0-9a-f]+`)

// reconstructBasicBlocks runs the two-pass algorithm of spec.md §4.B
// "Basic-block reconstruction" over an already-populated cache. It
// returns the count of statically unresolved branch targets.
func reconstructBasicBlocks(c *Cache, arch string, dynmapPath string) (int, error) {
	branchSet := branchSets[arch]

	pcs := make([]uint64, 0, len(c.Entries))
	for pc := range c.Entries {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })

	unresolved := 0

	// Pass 1: mark branches and, where the target is a resolvable
	// immediate, mark the target as a branch-target.
	for _, pc := range pcs {
		v := c.Entries[pc]
		mnemonic := ""
		if v.Instruction != nil {
			mnemonic = *v.Instruction
		}
		if !branchSet.All[mnemonic] {
			continue
		}
		v.Meta = v.Meta.Set(sample.MetaBranch)
		c.Entries[pc] = v

		if branchSet.Remote[mnemonic] {
			continue
		}

		target, ok := findTargetOperand(c.Asm[pc], c.Entries)
		if ok {
			tv := c.Entries[target]
			tv.Meta = tv.Meta.Set(sample.MetaBranchTarget)
			c.Entries[target] = tv
			continue
		}

		if isPLT(v) {
			continue
		}
		unresolved++
	}

	if dynmapPath != "" {
		if err := applyDynmap(c, dynmapPath); err != nil {
			return unresolved, err
		}
	}

	// Pass 2: single linear scan, tracking prevPc.
	functionCounter := -1
	bbCounter := 0
	var prevPc uint64
	havePrev := false

	for _, pc := range pcs {
		v := c.Entries[pc]
		switch {
		case v.Meta.Has(sample.MetaFunctionHead):
			functionCounter++
			bbCounter = 0
			v.Meta = v.Meta.Set(sample.MetaBasicBlockHead)
			if havePrev {
				pv := c.Entries[prevPc]
				pv.Meta = pv.Meta.Set(sample.MetaFunctionBack | sample.MetaBasicBlockBack)
				c.Entries[prevPc] = pv
			}
		case v.Meta.Has(sample.MetaBranchTarget) || v.Meta.Has(sample.MetaDynamicBranchTarget) ||
			(havePrev && c.Entries[prevPc].Meta.Has(sample.MetaBranch)):
			bbCounter++
			v.Meta = v.Meta.Set(sample.MetaBasicBlockHead)
			if havePrev {
				pv := c.Entries[prevPc]
				pv.Meta = pv.Meta.Set(sample.MetaBasicBlockBack)
				c.Entries[prevPc] = pv
			}
		}

		if v.BasicBlock != nil {
			tag := *v.BasicBlock + fmt.Sprintf("b%d", bbCounter)
			v.BasicBlock = sample.Str(tag)
		}
		c.Entries[pc] = v

		prevPc = pc
		havePrev = true
	}

	// The pc preceding the end of the last section is a function-back
	// too, same as one preceding the next function-head.
	if havePrev {
		pv := c.Entries[prevPc]
		pv.Meta = pv.Meta.Set(sample.MetaFunctionBack | sample.MetaBasicBlockBack)
		c.Entries[prevPc] = pv
	}

	return unresolved, nil
}

// findTargetOperand scans the argument list of an asm line in reverse
// for a hexadecimal token that parses as a pc present in the cache.
func findTargetOperand(asmLine string, entries map[uint64]sample.Vector) (uint64, bool) {
	tokens := hexTokenRe.FindAllString(asmLine, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		v, err := strconv.ParseUint(strings.TrimPrefix(tokens[i], "0x"), 16, 64)
		if err != nil {
			continue
		}
		if _, ok := entries[v]; ok {
			return v, true
		}
	}
	return 0, false
}

func isPLT(v sample.Vector) bool {
	if v.Function == nil {
		return false
	}
	return strings.HasSuffix(*v.Function, ".plt") || strings.Contains(*v.Function, "@plt")
}

// applyDynmap reads a fromPc,toPc CSV and marks every toPc as a
// dynamic-branch-target, per spec.md §4.B "Optional dynmap input".
func applyDynmap(c *Cache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("elfcache: open dynmap %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("elfcache: parse dynmap %s: %w", path, err)
	}

	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		from, err1 := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(rec[0]), "0x"), 16, 64)
		to, err2 := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(rec[1]), "0x"), 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if _, ok := c.Entries[to]; !ok {
			continue
		}
		tv := c.Entries[to]
		tv.Meta = tv.Meta.Set(sample.MetaDynamicBranchTarget)
		c.Entries[to] = tv
	}
	return nil
}
