// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// conditionMap ports condition_map (drcbearm64.cpp:167-183) verbatim: every
// UML condition except U/NU has a direct AArch64 NZCV condition code. U and
// NU test the emulated unordered flag, which has no native NZCV bit, so
// they're handled by emit_skip rather than appearing here.
var conditionMap = map[Condition]arm64.Cond{
	CondZ:  arm64.EQ,
	CondNZ: arm64.NE,
	CondS:  arm64.MI,
	CondNS: arm64.PL,
	CondC:  arm64.CS,
	CondNC: arm64.CC,
	CondV:  arm64.VS,
	CondNV: arm64.VC,
	CondA:  arm64.HI,
	CondBE: arm64.LS,
	CondG:  arm64.GT,
	CondLE: arm64.LE,
	CondL:  arm64.LT,
	CondGE: arm64.GE,
}

func hostCondition(c Condition) (arm64.Cond, bool) {
	cc, ok := conditionMap[c]
	return cc, ok
}

// emitSkip emits the inverse-condition branch that jumps over a
// conditionally-executed lowering, returning the byte offset of the branch
// instruction so the caller can patch it once the length of the skipped
// sequence is known. U/NU route through the emulated-flags word kept in
// FlagsReg rather than a native condition code.
func (g *Generator) emitSkip(cond Condition) (int, error) {
	switch cond {
	case CondAlways:
		return -1, nil
	case CondU, CondNU:
		// bit 4 (FlagU) of the persisted flags register.
		if cond == CondU {
			return g.asm.Tbz(FlagsReg, 4, 0), nil
		}
		return g.asm.Tbnz(FlagsReg, 4, 0), nil
	case CondC, CondNC:
		// CS/CC test NZCV.C directly against UML's carry polarity, so the
		// reload must land it in that polarity too.
		g.loadCarry(false)
		cc, _ := hostCondition(cond)
		return g.asm.BCond(cc.Invert(), 0), nil
	case CondA, CondBE:
		// HI/LS are defined in AArch64's own carry-out/no-borrow polarity,
		// the complement of UML's carry after a compare. Reload inverted
		// so the native condition reads the bit it actually expects.
		g.loadCarry(true)
		cc, _ := hostCondition(cond)
		return g.asm.BCond(cc.Invert(), 0), nil
	default:
		cc, ok := hostCondition(cond)
		if !ok {
			return 0, newGenError(ErrCatEncode, "unsupported condition %v", cond)
		}
		return g.asm.BCond(cc.Invert(), 0), nil
	}
}

// resolveSkip patches the branch produced by emitSkip to land just past the
// current emission position.
func (g *Generator) resolveSkip(branchOff int, cond Condition) error {
	if branchOff < 0 {
		return nil
	}
	target := g.asm.Offset()
	switch cond {
	case CondU, CondNU:
		return g.asm.PatchTb(branchOff, target)
	default:
		return g.asm.PatchBCond(branchOff, target)
	}
}
