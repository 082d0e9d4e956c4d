// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// opMov lowers MOV dst,src. A 4-byte move between two memory-resident
// cells is a single 4-byte load followed by a 4-byte store: the upper 32
// bits of a destination cell wider than the move are left exactly as they
// were, matching the tolerated (not corrected) mov_param_param quirk noted
// in the design document.
func (g *Generator) opMov(inst *Instruction) error {
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
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opSext sign-extends a fromBytes-wide quantity (1, 2 or 4, carried as an
// immediate third parameter) up to the instruction's own size.
func (g *Generator) opSext(inst *Instruction) error {
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
	fromSize := inst.P(2)
	bits := uint32(32)
	if fromSize.Kind == ParamImmediate {
		switch fromSize.Imm {
		case 1:
			bits = 8
		case 2:
			bits = 16
		case 4:
			bits = 32
		case 8:
			bits = 64
		}
	}
	if bits < uint32(width) {
		g.asm.Sbfx(width, Scratch1, Scratch1, 0, bits)
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// rotateLeftImm computes dst = ROL(src, n) for a compile-time-constant
// shift amount, using the shift-and-OR identity since AArch64 only offers
// rotate-right (RORV) natively.
func (g *Generator) rotateLeftImm(width int, dst, src arm64.Reg, n uint32, tmp arm64.Reg) {
	n %= uint32(width)
	if n == 0 {
		g.asm.MovReg(width, dst, src)
		return
	}
	g.asm.ShiftedReg(width, dst, arm64.XZR, src, arm64.LSL, n)
	g.asm.ShiftedReg(width, tmp, arm64.XZR, src, arm64.LSR, uint32(width)-n)
	g.asm.OrrReg(width, dst, dst, tmp)
}

// andWithParam ANDs acc with a classified mask parameter, using the
// bitmask-immediate encoding directly when the mask is a compile-time
// constant that qualifies, and a materialize+AND otherwise.
func (g *Generator) andWithParam(width int, acc arm64.Reg, mask Param, scratch arm64.Reg) error {
	if mask.Kind == ParamImmediate {
		if n, immr, imms, ok := arm64.EncodeBitmaskImmediate(mask.Imm, width); ok {
			g.asm.AndImm(width, acc, acc, n, immr, imms)
			return nil
		}
		if err := g.loadImmIntoReg(scratch, width, mask.Imm); err != nil {
			return err
		}
		g.asm.AndReg(width, acc, acc, scratch)
		return nil
	}
	loc, err := classify(mask, PTypeMR)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(loc, width, scratch); err != nil {
		return err
	}
	g.asm.AndReg(width, acc, acc, scratch)
	return nil
}

// opRoland lowers ROLAND dst,src,shift,mask: dst = ROL(src,shift) & mask.
func (g *Generator) opRoland(inst *Instruction) error {
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
	shiftP := inst.P(2)
	if shiftP.Kind != ParamImmediate {
		return newGenError(ErrCatEncode, "roland requires an immediate shift amount")
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return err
	}
	g.rotateLeftImm(width, Scratch1, Scratch1, uint32(shiftP.Imm), Temp1)
	if err := g.andWithParam(width, Scratch1, inst.P(3), Scratch2); err != nil {
		return err
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opRolins lowers ROLINS dst,src,shift,mask: dst = (dst & ~mask) |
// (ROL(src,shift) & mask), a masked bitfield insert.
func (g *Generator) opRolins(inst *Instruction) error {
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
	shiftP := inst.P(2)
	if shiftP.Kind != ParamImmediate {
		return newGenError(ErrCatEncode, "rolins requires an immediate shift amount")
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(dstLoc, width, Temp2); err != nil {
		return err
	}
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return err
	}
	g.rotateLeftImm(width, Scratch1, Scratch1, uint32(shiftP.Imm), Temp1)
	mask := inst.P(3)
	if err := g.andWithParam(width, Scratch1, mask, Scratch2); err != nil {
		return err
	}
	// Temp2 &= ~mask
	if mask.Kind == ParamImmediate {
		if n, immr, imms, ok := arm64.EncodeBitmaskImmediate(^mask.Imm, width); ok {
			g.asm.AndImm(width, Temp2, Temp2, n, immr, imms)
		} else {
			if err := g.loadImmIntoReg(Scratch2, width, mask.Imm); err != nil {
				return err
			}
			g.asm.BicReg(width, Temp2, Temp2, Scratch2)
		}
	} else {
		maskLoc, err := classify(mask, PTypeMR)
		if err != nil {
			return err
		}
		if err := g.moveLocationToReg(maskLoc, width, Scratch2); err != nil {
			return err
		}
		g.asm.BicReg(width, Temp2, Temp2, Scratch2)
	}
	g.asm.OrrReg(width, Scratch1, Scratch1, Temp2)
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
