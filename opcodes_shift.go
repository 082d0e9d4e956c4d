// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// loadShiftOperands classifies dst/src/count for the shift family and
// leaves src in Scratch1 and a reduced shift count in Scratch2.
func (g *Generator) loadShiftOperands(inst *Instruction, width int) (dstLoc Location, err error) {
	dstLoc, err = classify(inst.P(0), PTypeMR)
	if err != nil {
		return Location{}, err
	}
	srcLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return Location{}, err
	}
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return Location{}, err
	}
	countP := inst.P(2)
	if countP.Kind == ParamImmediate {
		if err := g.loadImmIntoReg(Scratch2, width, countP.Imm%uint64(width)); err != nil {
			return Location{}, err
		}
	} else {
		countLoc, err := classify(countP, PTypeMRI)
		if err != nil {
			return Location{}, err
		}
		if err := g.moveLocationToReg(countLoc, width, Scratch2); err != nil {
			return Location{}, err
		}
	}
	return dstLoc, nil
}

// shiftCarryOut writes the bit shifted out of orig (count positions, left
// or right) into FlagsReg bit 0: bit (width-count) for a left shift, bit
// (count-1) for a right shift, the general form of "bit 0/width-1 of the
// original operand when count==1". A zero count shifts the extract
// position out of range and the bit synthesized is meaningless, matching
// a shift-by-zero's undefined effect on the carry flag.
func (g *Generator) shiftCarryOut(width int, orig, count arm64.Reg, left bool) error {
	if left {
		if err := g.loadImmIntoReg(Temp2, width, uint64(width)); err != nil {
			return err
		}
		g.asm.SubReg(width, Temp2, Temp2, count)
	} else {
		if err := g.asm.AddSubImm(true, false, width, Temp2, count, 1, false); err != nil {
			return err
		}
	}
	g.asm.Lsrv(width, Temp2, orig, Temp2)
	g.asm.Bfi(64, FlagsReg, Temp2, 0, 1)
	g.carry = carryLogical
	return nil
}

func (g *Generator) shiftOp(inst *Instruction, left bool, emit func(width int, dst, rn, rm arm64.Reg)) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	dstLoc, err := g.loadShiftOperands(inst, width)
	if err != nil {
		return err
	}
	g.asm.MovReg(width, Temp1, Scratch1) // original operand, needed for the carry-out bit
	emit(width, Scratch1, Scratch1, Scratch2)
	if inst.FlagMask != 0 {
		if err := g.shiftCarryOut(width, Temp1, Scratch2, left); err != nil {
			return err
		}
		g.asm.CmpImm(width, Scratch1, 0, false)
	} else {
		g.poisonCarry()
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opShl(inst *Instruction) error {
	return g.shiftOp(inst, true, func(width int, dst, rn, rm arm64.Reg) {
		g.asm.Lslv(width, dst, rn, rm)
	})
}

func (g *Generator) opShr(inst *Instruction) error {
	return g.shiftOp(inst, false, func(width int, dst, rn, rm arm64.Reg) {
		g.asm.Lsrv(width, dst, rn, rm)
	})
}

func (g *Generator) opSar(inst *Instruction) error {
	return g.shiftOp(inst, false, func(width int, dst, rn, rm arm64.Reg) {
		g.asm.Asrv(width, dst, rn, rm)
	})
}

// opRol lowers ROL as a right-rotate by (width - count), since AArch64 only
// has a variable rotate-right instruction (RORV).
func (g *Generator) opRol(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	dstLoc, err := g.loadShiftOperands(inst, width)
	if err != nil {
		return err
	}
	g.asm.MovReg(width, Temp3, Scratch1) // original operand, needed for the carry-out bit
	g.asm.MovReg(width, Temp1, arm64.XZR)
	if err := g.asm.AddSubImm(true, false, width, Temp1, Temp1, uint32(width), false); err != nil {
		return err
	}
	g.asm.SubReg(width, Temp1, Temp1, Scratch2)
	g.asm.Rorv(width, Scratch1, Scratch1, Temp1)
	if inst.FlagMask != 0 {
		if err := g.shiftCarryOut(width, Temp3, Scratch2, true); err != nil {
			return err
		}
		g.asm.CmpImm(width, Scratch1, 0, false)
	} else {
		g.poisonCarry()
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opRor(inst *Instruction) error {
	return g.shiftOp(inst, false, func(width int, dst, rn, rm arm64.Reg) {
		g.asm.Rorv(width, dst, rn, rm)
	})
}

// opRolc/opRorc are the rotate-through-carry forms. Only a single-bit
// rotate is supported (the only count MAME's own AArch64-class back ends
// ever emit for these opcodes); a non-unit immediate count is rejected
// rather than silently mis-lowered.
func (g *Generator) opRolc(inst *Instruction) error {
	return g.rotateThroughCarry(inst, true)
}

func (g *Generator) opRorc(inst *Instruction) error {
	return g.rotateThroughCarry(inst, false)
}

func (g *Generator) rotateThroughCarry(inst *Instruction, left bool) error {
	countP := inst.P(2)
	if countP.Kind != ParamImmediate || countP.Imm != 1 {
		return newGenError(ErrCatUnsupported, "rolc/rorc only support a unit rotate count")
	}
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
	// carryIn is bit 0 of FlagsReg, the only place C persists between
	// instructions once a live NZCV.C has been flushed there.
	g.flushCarry()
	g.asm.Ubfx(64, Temp2, FlagsReg, 0, 1)
	if left {
		// newCarry = top bit of src; result = (src << 1) | carryIn
		g.asm.Ubfx(width, Temp1, Scratch1, uint32(width-1), 1)
		g.asm.ShiftedReg(width, Scratch1, arm64.XZR, Scratch1, arm64.LSL, 1)
		g.asm.OrrReg(width, Scratch1, Scratch1, Temp2)
	} else {
		// newCarry = bottom bit of src; result = (src >> 1) | (carryIn << (width-1))
		g.asm.Ubfx(width, Temp1, Scratch1, 0, 1)
		g.asm.ShiftedReg(width, Scratch1, arm64.XZR, Scratch1, arm64.LSR, 1)
		g.asm.ShiftedReg(width, Temp2, arm64.XZR, Temp2, arm64.LSL, uint32(width-1))
		g.asm.OrrReg(width, Scratch1, Scratch1, Temp2)
	}
	g.asm.Bfi(64, FlagsReg, Temp1, 0, 1)
	g.carry = carryLogical
	if inst.FlagMask&FlagZ != 0 {
		// Z must reflect the rotated result, not the carry; comparing
		// clobbers NZCV.C, which is fine since the carry bit already
		// lives in FlagsReg above and the cache stays carryLogical.
		g.asm.CmpImm(width, Scratch1, 0, false)
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
