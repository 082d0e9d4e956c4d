// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// fitsAddSubImm12 reports whether v encodes directly as ADD/SUB's 12-bit
// (optionally LSL #12) immediate form, returning the shift flag to use.
func fitsAddSubImm12(v uint64) (imm uint32, shift12, ok bool) {
	if v <= 0xfff {
		return uint32(v), false, true
	}
	if v&0xfff == 0 && v>>12 <= 0xfff {
		return uint32(v >> 12), true, true
	}
	return 0, false, false
}

// addSubReg picks the flag-setting or plain shifted-register form.
func addSubReg(a *arm64.Assembler, sub, setFlags bool, width int, dst, rn, rm arm64.Reg) {
	switch {
	case !sub && !setFlags:
		a.AddReg(width, dst, rn, rm)
	case !sub && setFlags:
		a.AddsReg(width, dst, rn, rm)
	case sub && !setFlags:
		a.SubReg(width, dst, rn, rm)
	default:
		a.SubsReg(width, dst, rn, rm)
	}
}

// emitAddSub computes dst = rn +/- param (immediate or register), setting
// flags when setFlags is true, and updating the carry cache accordingly.
// dst and rn may be the same register.
func (g *Generator) emitAddSub(width int, sub, setFlags bool, dst, rn arm64.Reg, param Param, scratch arm64.Reg) error {
	if param.Kind == ParamImmediate {
		if imm, shift12, ok := fitsAddSubImm12(param.Imm); ok {
			if err := g.asm.AddSubImm(sub, setFlags, width, dst, rn, imm, shift12); err != nil {
				return err
			}
		} else {
			if err := g.loadImmIntoReg(scratch, width, param.Imm); err != nil {
				return err
			}
			addSubReg(g.asm, sub, setFlags, width, dst, rn, scratch)
		}
	} else {
		loc, err := classify(param, PTypeMR)
		if err != nil {
			return err
		}
		if err := g.moveLocationToReg(loc, width, scratch); err != nil {
			return err
		}
		addSubReg(g.asm, sub, setFlags, width, dst, rn, scratch)
	}
	switch {
	case setFlags && sub:
		// SUBS/SBCS leaves NZCV.C holding "no borrow"; flush the inverted
		// bit straight into FlagsReg since it can't be reused as-is.
		g.storeCarry(true)
	case setFlags:
		g.markCanonical()
	default:
		g.poisonCarry()
	}
	return nil
}

func (g *Generator) binaryOp2(inst *Instruction, sub, useCarryIn bool) error {
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
	s2 := inst.P(2)
	if useCarryIn {
		g.loadCarry(sub)
		loc, err := classify(s2, PTypeMRI)
		if err != nil {
			return err
		}
		if err := g.moveLocationToReg(loc, width, Scratch2); err != nil {
			return err
		}
		if sub {
			if setFlags {
				g.asm.Sbcs(width, Scratch1, Scratch1, Scratch2)
			} else {
				g.asm.Sbc(width, Scratch1, Scratch1, Scratch2)
			}
		} else {
			if setFlags {
				g.asm.Adcs(width, Scratch1, Scratch1, Scratch2)
			} else {
				g.asm.Adc(width, Scratch1, Scratch1, Scratch2)
			}
		}
		switch {
		case setFlags && sub:
			g.storeCarry(true)
		case setFlags:
			g.markCanonical()
		default:
			g.poisonCarry()
		}
	} else {
		if err := g.emitAddSub(width, sub, setFlags, Scratch1, Scratch1, s2, Scratch2); err != nil {
			return err
		}
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opAdd(inst *Instruction) error  { return g.binaryOp2(inst, false, false) }
func (g *Generator) opSub(inst *Instruction) error  { return g.binaryOp2(inst, true, false) }
func (g *Generator) opAddc(inst *Instruction) error { return g.binaryOp2(inst, false, true) }
func (g *Generator) opSubb(inst *Instruction) error { return g.binaryOp2(inst, true, true) }

// opCmp lowers CMP src1,src2: identical to SUB but discards the result,
// only flags matter.
func (g *Generator) opCmp(inst *Instruction) error {
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
	s2 := inst.P(1)
	if err := g.emitAddSub(width, true, true, arm64.XZR, Scratch1, s2, Scratch2); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) loadBinaryOperands(inst *Instruction, width int) (Location, error) {
	s1Loc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return Location{}, err
	}
	if err := g.moveLocationToReg(s1Loc, width, Scratch1); err != nil {
		return Location{}, err
	}
	s2 := inst.P(2)
	loc, err := classify(s2, PTypeMRI)
	if err != nil {
		return Location{}, err
	}
	if err := g.moveLocationToReg(loc, width, Scratch2); err != nil {
		return Location{}, err
	}
	return classify(inst.P(0), PTypeMR)
}

// opMulu lowers MULU dstlo,dsthi,src1,src2: an unsigned widening multiply
// producing a double-width result across two destination parameters.
func (g *Generator) opMulu(inst *Instruction) error {
	return g.widenMul(inst, false)
}
func (g *Generator) opMuls(inst *Instruction) error {
	return g.widenMul(inst, true)
}

func (g *Generator) widenMul(inst *Instruction, signed bool) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	loLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	hiLoc, err := classify(inst.P(1), PTypeMR)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(2), PTypeMRI)
	if err != nil {
		return err
	}
	s2Loc, err := classify(inst.P(3), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(s1Loc, width, Scratch1); err != nil {
		return err
	}
	if err := g.moveLocationToReg(s2Loc, width, Scratch2); err != nil {
		return err
	}
	if width == 64 {
		g.asm.Mul(64, Temp1, Scratch1, Scratch2)
		if signed {
			g.asm.Smulh(Temp2, Scratch1, Scratch2)
		} else {
			g.asm.Umulh(Temp2, Scratch1, Scratch2)
		}
	} else {
		if signed {
			g.asm.Smull(Temp1, Scratch1, Scratch2)
		} else {
			g.asm.Umull(Temp1, Scratch1, Scratch2)
		}
		// Temp1 now holds the full 64-bit product; split it into two
		// 32-bit halves.
		g.asm.Movz(64, Scratch1, 32, 0)
		g.asm.Lsrv(64, Temp2, Temp1, Scratch1)
		g.asm.OrrReg(32, Scratch1, arm64.XZR, Temp1)
		g.asm.MovReg(32, Temp1, Scratch1)
	}
	if inst.FlagMask != 0 {
		// Z = lo==0 && hi==0, V = hi!=0 (the low word alone overflowed a
		// single-width result), S = sign bit of hi. Scratch1/Scratch2 are
		// free again once the product is settled in Temp1/Temp2.
		g.asm.OrrReg(64, Scratch2, Temp1, Temp2)
		g.asm.CmpImm(64, Scratch2, 0, false)
		g.asm.Cset(64, Scratch2, arm64.EQ)
		g.asm.MovReg(64, Scratch1, arm64.XZR)
		g.asm.Bfi(64, Scratch1, Scratch2, 30, 1) // Z

		g.asm.CmpImm(64, Temp2, 0, false)
		g.asm.Cset(64, Scratch2, arm64.NE)
		g.asm.Bfi(64, Scratch1, Scratch2, 28, 1) // V

		g.asm.Ubfx(64, Scratch2, Temp2, uint32(width-1), 1)
		g.asm.Bfi(64, Scratch1, Scratch2, 31, 1) // S -> N

		g.asm.MsrNzcv(Scratch1)
		// C isn't part of the widening-multiply flag set; the cache can't
		// vouch for it.
		g.poisonCarry()
	}
	if err := g.storeRegToLocation(loLoc, width, Temp1); err != nil {
		return err
	}
	if err := g.storeRegToLocation(hiLoc, width, Temp2); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opMululw/opMulslw are the "low word" forms: only the low half of the
// product is kept, in a single destination parameter, which is exactly a
// narrow MUL.
func (g *Generator) opMululw(inst *Instruction) error { return g.narrowMul(inst) }
func (g *Generator) opMulslw(inst *Instruction) error { return g.narrowMul(inst) }

func (g *Generator) narrowMul(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	dstLoc, err := g.loadBinaryOperands(inst, width)
	if err != nil {
		return err
	}
	g.asm.Mul(width, Scratch1, Scratch1, Scratch2)
	if inst.FlagMask != 0 {
		g.asm.CmpImm(width, Scratch1, 0, false)
		g.markCanonical()
	}
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opDivu(inst *Instruction) error { return g.divOp(inst, false) }
func (g *Generator) opDivs(inst *Instruction) error { return g.divOp(inst, true) }

// divOp lowers DIVU/DIVS dst,rem,src1,src2. A zero divisor sets V and
// leaves dst/edst completely untouched rather than storing AArch64's
// silent zero result. The remainder is only computed and stored when dst
// and edst classify to different locations, since MSUB into an already
// classified quotient destination would clobber it when they alias.
func (g *Generator) divOp(inst *Instruction, signed bool) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	quotLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	remLoc, err := classify(inst.P(1), PTypeMR)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(2), PTypeMRI)
	if err != nil {
		return err
	}
	s2Loc, err := classify(inst.P(3), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(s1Loc, width, Scratch1); err != nil {
		return err
	}
	if err := g.moveLocationToReg(s2Loc, width, Scratch2); err != nil {
		return err
	}
	// AArch64's UDIV/SDIV silently return 0 on a zero divisor instead of
	// trapping, so the zero check has to be explicit: cbnz over the divide
	// when src2 != 0, otherwise set V and leave dst/edst untouched.
	divisorBranch := g.asm.Cbnz(width, Scratch2, 0)
	g.asm.Movz(64, Scratch1, 0x1000, 16) // NZCV.V
	g.asm.MsrNzcv(Scratch1)
	g.poisonCarry()
	doneBranch := g.asm.B(0)

	divTarget := g.asm.Offset()
	if err := g.asm.PatchBCond(divisorBranch, divTarget); err != nil {
		return err
	}
	if signed {
		g.asm.Sdiv(width, Temp1, Scratch1, Scratch2)
	} else {
		g.asm.Udiv(width, Temp1, Scratch1, Scratch2)
	}
	sameLoc := quotLoc == remLoc
	if !sameLoc {
		g.asm.Msub(width, Temp2, Temp1, Scratch2, Scratch1)
	}
	if inst.FlagMask != 0 {
		g.asm.CmpImm(width, Temp1, 0, false)
		g.markCanonical()
	}
	if err := g.storeRegToLocation(quotLoc, width, Temp1); err != nil {
		return err
	}
	if !sameLoc {
		if err := g.storeRegToLocation(remLoc, width, Temp2); err != nil {
			return err
		}
	}

	doneTarget := g.asm.Offset()
	if err := g.asm.PatchBranch(doneBranch, doneTarget); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
