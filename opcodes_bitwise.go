// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

type logicalKind int

const (
	logKindAnd logicalKind = iota
	logKindOr
	logKindXor
)

// emitLogical computes acc = acc OP param, using the bitmask-immediate
// encoding directly when param is a qualifying compile-time constant.
func (g *Generator) emitLogical(kind logicalKind, width int, acc arm64.Reg, param Param, scratch arm64.Reg, setFlags bool) error {
	if param.Kind == ParamImmediate {
		if n, immr, imms, ok := arm64.EncodeBitmaskImmediate(param.Imm, width); ok {
			switch kind {
			case logKindAnd:
				if setFlags {
					g.asm.AndsImm(width, acc, acc, n, immr, imms)
				} else {
					g.asm.AndImm(width, acc, acc, n, immr, imms)
				}
			case logKindOr:
				g.asm.OrrImm(width, acc, acc, n, immr, imms)
			case logKindXor:
				g.asm.EorImm(width, acc, acc, n, immr, imms)
			}
			goto done
		}
		if err := g.loadImmIntoReg(scratch, width, param.Imm); err != nil {
			return err
		}
	} else {
		loc, err := classify(param, PTypeMR)
		if err != nil {
			return err
		}
		if err := g.moveLocationToReg(loc, width, scratch); err != nil {
			return err
		}
	}
	switch kind {
	case logKindAnd:
		if setFlags {
			g.asm.AndsReg(width, acc, acc, scratch)
		} else {
			g.asm.AndReg(width, acc, acc, scratch)
		}
	case logKindOr:
		g.asm.OrrReg(width, acc, acc, scratch)
	case logKindXor:
		g.asm.EorReg(width, acc, acc, scratch)
	}
done:
	if setFlags {
		g.markCanonical()
	} else {
		g.poisonCarry()
	}
	return nil
}

func (g *Generator) logicalOp(inst *Instruction, kind logicalKind) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(s1Loc, width, Scratch1); err != nil {
		return err
	}
	setFlags := inst.FlagMask != 0
	if err := g.emitLogical(kind, width, Scratch1, inst.P(2), Scratch2, setFlags); err != nil {
		return err
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opAnd(inst *Instruction) error { return g.logicalOp(inst, logKindAnd) }
func (g *Generator) opOr(inst *Instruction) error  { return g.logicalOp(inst, logKindOr) }
func (g *Generator) opXor(inst *Instruction) error { return g.logicalOp(inst, logKindXor) }

// opTest lowers TEST src1,src2: ANDS discarding the result, only flags
// matter (the UML equivalent of AArch64's TST).
func (g *Generator) opTest(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(s1Loc, width, Scratch1); err != nil {
		return err
	}
	if err := g.emitLogical(logKindAnd, width, Scratch1, inst.P(1), Scratch2, true); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opLzcnt/opTzcnt count leading/trailing zero bits. AArch64 has no native
// trailing-zero-count; TZCNT(x) = CLZ(RBIT(x)).
func (g *Generator) opLzcnt(inst *Instruction) error {
	return g.countOp(inst, func(width int, dst, src arm64.Reg) {
		g.asm.Clz(width, dst, src)
	})
}

func (g *Generator) opTzcnt(inst *Instruction) error {
	return g.countOp(inst, func(width int, dst, src arm64.Reg) {
		g.asm.Rbit(width, dst, src)
		g.asm.Clz(width, dst, dst)
	})
}

func (g *Generator) countOp(inst *Instruction, emit func(width int, dst, src arm64.Reg)) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return err
	}
	emit(width, Scratch1, Scratch1)
	if inst.FlagMask != 0 {
		g.asm.CmpImm(width, Scratch1, 0, false)
		g.markCanonical()
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opBswap reverses byte order across the full operand width.
func (g *Generator) opBswap(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return err
	}
	g.asm.Rev(width, Scratch1, Scratch1)
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
