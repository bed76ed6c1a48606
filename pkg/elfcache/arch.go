package elfcache

// BranchSet names the mnemonics that alter control flow ("all") and
// the subset among them whose target isn't an immediate operand
// ("remote" — indirect calls/returns/syscalls), per architecture.
type BranchSet struct {
	All    map[string]bool
	Remote map[string]bool
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// branchSets covers the two architectures the basic-block pass knows
// about; other architectures skip reconstruction entirely (spec.md
// §4.B "and the architecture is in the known set").
var branchSets = map[string]BranchSet{
	"AArch64": {
		All: set("b", "b.eq", "b.ne", "b.cs", "b.cc", "b.mi", "b.pl", "b.vs", "b.vc",
			"b.hi", "b.ls", "b.ge", "b.lt", "b.gt", "b.le", "b.al",
			"bl", "br", "blr", "ret", "cbz", "cbnz", "tbz", "tbnz", "svc"),
		Remote: set("br", "blr", "ret", "svc"),
	},
	"RISC-V": {
		All: set("beq", "bne", "blt", "bge", "bltu", "bgeu",
			"jal", "jalr", "ecall", "ebreak"),
		Remote: set("jalr", "ecall", "ebreak"),
	},
}

// KnownArch reports whether arch has a registered branch-instruction
// set for basic-block reconstruction.
func KnownArch(arch string) bool {
	_, ok := branchSets[arch]
	return ok
}
