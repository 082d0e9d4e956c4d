// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// UML rounding-mode immediates, in the order the front end encodes them
// for FTOINT.
const (
	umlRoundTrunc = 0
	umlRoundRound = 1
	umlRoundCeil  = 2
	umlRoundFloor = 3
)

func fcvtRoundMode(m uint64) (arm64.RoundMode, bool) {
	switch m {
	case umlRoundTrunc:
		return arm64.RoundZero, true
	case umlRoundRound:
		return arm64.RoundNearest, true
	case umlRoundCeil:
		return arm64.RoundPlusInf, true
	case umlRoundFloor:
		return arm64.RoundMinInf, true
	default:
		return 0, false
	}
}

// moveFloatLocationToReg and storeFloatRegToLocation are moveLocationToReg
// and storeRegToLocation's float-register-file counterparts: a classified
// Location's register case needs fmov rather than the GP-only MovReg, and
// its memory case needs a SIMD&FP load/store rather than a GP one.
func (g *Generator) moveFloatLocationToReg(loc Location, width int, rd arm64.Reg) error {
	ty := floatTypeForWidth(width)
	if loc.IsRegister {
		if loc.Reg == rd {
			return nil
		}
		g.asm.FmovReg(ty, rd, loc.Reg)
		return nil
	}
	return g.emitFloatLoadStoreAbs(true, width, rd, loc.MemOffset)
}

func (g *Generator) storeFloatRegToLocation(loc Location, width int, rs arm64.Reg) error {
	if loc.IsRegister {
		if loc.Reg == rs {
			return nil
		}
		g.asm.FmovReg(floatTypeForWidth(width), loc.Reg, rs)
		return nil
	}
	return g.emitFloatLoadStoreAbs(false, width, rs, loc.MemOffset)
}

// emitFloatLoadStoreAbs is emitLoadStoreAbs's float-register counterpart,
// simplified to a single tier: float memory operands are rare next to
// integer ones (most UML float state lives in F0-F7), so this always
// materializes the full address into MemScratch rather than chasing the
// cheap BaseReg-relative and ADR/ADRP forms emitLoadStoreAbs tries first.
func (g *Generator) emitFloatLoadStoreAbs(load bool, width int, rt arm64.Reg, addr uintptr) error {
	if err := g.materializeImm(MemScratch, uint64(addr)); err != nil {
		return err
	}
	return g.asm.FLdrStrImm9(load, arm64.SizeShift(width/8), rt, MemScratch, 0)
}

// opFmov lowers a conditional float move. When both operands are plain
// float registers and the condition has a direct NZCV mapping, fcsel
// selects between them with no branch; otherwise it falls back to
// emit_skip plus a plain move, the same shape every other conditional
// lowerer in this package uses.
func (g *Generator) opFmov(inst *Instruction) error {
	dstP, srcP := inst.P(0), inst.P(1)
	width := regWidth(inst.Size)
	ty := floatTypeForWidth(width)
	if cc, ok := hostCondition(inst.Condition); ok && dstP.Kind == ParamFloatRegister && srcP.Kind == ParamFloatRegister {
		dstReg := FloatRegHost(dstP.Index)
		g.asm.Fcsel(ty, dstReg, FloatRegHost(srcP.Index), dstReg, cc)
		return nil
	}
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(dstP, PTypeMF)
	if err != nil {
		return err
	}
	srcLoc, err := classify(srcP, PTypeMF)
	if err != nil {
		return err
	}
	if err := g.moveFloatLocationToReg(srcLoc, width, TempF1); err != nil {
		return err
	}
	if err := g.storeFloatRegToLocation(dstLoc, width, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// floatBinOp is the shared three-operand (dst,src1,src2) float lowerer
// used by FADD/FSUB/FMUL/FDIV.
func (g *Generator) floatBinOp(inst *Instruction, emit func(ty arm64.FpType, rd, rn, rm arm64.Reg)) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	s2Loc, err := classify(inst.P(2), PTypeMF)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	ty := floatTypeForWidth(width)
	if err := g.moveFloatLocationToReg(s1Loc, width, TempF1); err != nil {
		return err
	}
	if err := g.moveFloatLocationToReg(s2Loc, width, TempF2); err != nil {
		return err
	}
	emit(ty, TempF1, TempF1, TempF2)
	if err := g.storeFloatRegToLocation(dstLoc, width, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opFadd(inst *Instruction) error {
	return g.floatBinOp(inst, func(ty arm64.FpType, rd, rn, rm arm64.Reg) { g.asm.Fadd(ty, rd, rn, rm) })
}

func (g *Generator) opFsub(inst *Instruction) error {
	return g.floatBinOp(inst, func(ty arm64.FpType, rd, rn, rm arm64.Reg) { g.asm.Fsub(ty, rd, rn, rm) })
}

func (g *Generator) opFmul(inst *Instruction) error {
	return g.floatBinOp(inst, func(ty arm64.FpType, rd, rn, rm arm64.Reg) { g.asm.Fmul(ty, rd, rn, rm) })
}

func (g *Generator) opFdiv(inst *Instruction) error {
	return g.floatBinOp(inst, func(ty arm64.FpType, rd, rn, rm arm64.Reg) { g.asm.Fdiv(ty, rd, rn, rm) })
}

// floatUnOp is the shared two-operand (dst,src) float lowerer used by
// FNEG/FABS/FSQRT.
func (g *Generator) floatUnOp(inst *Instruction, emit func(ty arm64.FpType, rd, rn arm64.Reg)) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	ty := floatTypeForWidth(width)
	if err := g.moveFloatLocationToReg(srcLoc, width, TempF1); err != nil {
		return err
	}
	emit(ty, TempF1, TempF1)
	if err := g.storeFloatRegToLocation(dstLoc, width, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opFneg(inst *Instruction) error {
	return g.floatUnOp(inst, func(ty arm64.FpType, rd, rn arm64.Reg) { g.asm.Fneg(ty, rd, rn) })
}

func (g *Generator) opFabs(inst *Instruction) error {
	return g.floatUnOp(inst, func(ty arm64.FpType, rd, rn arm64.Reg) { g.asm.Fabs(ty, rd, rn) })
}

func (g *Generator) opFsqrt(inst *Instruction) error {
	return g.floatUnOp(inst, func(ty arm64.FpType, rd, rn arm64.Reg) { g.asm.Fsqrt(ty, rd, rn) })
}

// loadFloatOne materializes 1.0 at the given precision into rd, by loading
// its bit pattern into a GP scratch register and moving it across.
func (g *Generator) loadFloatOne(ty arm64.FpType, width int, rd arm64.Reg) error {
	bits := uint64(0x3F800000)
	if ty == arm64.FPDouble {
		bits = 0x3FF0000000000000
	}
	if err := g.loadImmIntoReg(Scratch1, width, bits); err != nil {
		return err
	}
	g.asm.FmovIntToFloat(width, ty, rd, Scratch1)
	return nil
}

// opFrecip/opFrsqrt lower the reciprocal and reciprocal-square-root
// opcodes as exact division (1/x and 1/sqrt(x)) rather than the native
// FRECPE/FRSQRTE estimate instructions: this back end already computes
// every other float result to full precision, and estimate instructions
// exist to trade precision for throughput this recompiler doesn't need.
func (g *Generator) opFrecip(inst *Instruction) error {
	return g.floatUnOp(inst, func(ty arm64.FpType, rd, rn arm64.Reg) {
		width := 32
		if ty == arm64.FPDouble {
			width = 64
		}
		g.loadFloatOne(ty, width, TempF3)
		g.asm.Fdiv(ty, rd, TempF3, rn)
	})
}

func (g *Generator) opFrsqrt(inst *Instruction) error {
	return g.floatUnOp(inst, func(ty arm64.FpType, rd, rn arm64.Reg) {
		width := 32
		if ty == arm64.FPDouble {
			width = 64
		}
		g.asm.Fsqrt(ty, rn, rn)
		g.loadFloatOne(ty, width, TempF3)
		g.asm.Fdiv(ty, rd, TempF3, rn)
	})
}

// opFcmp lowers FCMP: fcmp sets native NZCV directly, then C and the
// emulated unordered bit are flushed into FlagsReg the same way every
// other flag-producing opcode persists them. Z and N/V stay live in NZCV
// for whatever reads them next, same as every integer compare.
func (g *Generator) opFcmp(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	s1Loc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	s2Loc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	ty := floatTypeForWidth(width)
	if err := g.moveFloatLocationToReg(s1Loc, width, TempF1); err != nil {
		return err
	}
	if err := g.moveFloatLocationToReg(s2Loc, width, TempF2); err != nil {
		return err
	}
	g.asm.Fcmp(ty, TempF1, TempF2)
	g.asm.MrsNzcv(Scratch1)
	g.asm.Ubfx(64, Scratch2, Scratch1, nzcvCBit, 1)
	g.asm.Bfi(64, FlagsReg, Scratch2, 0, 1)
	g.asm.Ubfx(64, Scratch2, Scratch1, 28, 1) // V: fcmp sets V on an unordered compare
	g.asm.Bfi(64, FlagsReg, Scratch2, 4, 1)
	g.carry = carryLogical
	return g.resolveSkip(skip, inst.Condition)
}

// opFcopyi/opIcopyf move a value between the integer and float register
// files bit-for-bit via fmov, with no format conversion.
func (g *Generator) opFcopyi(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstP := inst.P(0)
	if dstP.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "fcopyi requires a float register destination")
	}
	srcLoc, err := classify(inst.P(1), PTypeMR)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(srcLoc, width, Scratch1); err != nil {
		return err
	}
	g.asm.FmovIntToFloat(width, floatTypeForWidth(width), FloatRegHost(dstP.Index), Scratch1)
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opIcopyf(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	srcP := inst.P(1)
	if srcP.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "icopyf requires a float register source")
	}
	width := regWidth(inst.Size)
	g.asm.FmovFloatToInt(width, Scratch1, floatTypeForWidth(width), FloatRegHost(srcP.Index))
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFtoint lowers FTOINT dst,src,size,round: converts the float source to
// an integer of the given byte size, rounding per the mode immediate.
// size/round follow the front end's original FTOINT parameter order.
func (g *Generator) opFtoint(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	sizeP := inst.P(2)
	dstWidth := 32
	if sizeP.Kind == ParamImmediate && sizeP.Imm == 8 {
		dstWidth = 64
	}
	roundP := inst.P(3)
	mode, ok := fcvtRoundMode(roundP.Imm)
	if !ok {
		return newGenError(ErrCatEncode, "ftoint: unsupported rounding mode %d", roundP.Imm)
	}
	srcWidth := regWidth(inst.Size)
	ty := floatTypeForWidth(srcWidth)
	if err := g.moveFloatLocationToReg(srcLoc, srcWidth, TempF1); err != nil {
		return err
	}
	g.asm.Fcvt(mode, true, dstWidth, ty, Scratch1, TempF1)
	g.poisonCarry()
	if err := g.storeRegToLocation(dstLoc, dstWidth, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFfrint lowers FFRINT dst,src,size: scvtf from an integer source of the
// given byte size into the instruction's float width.
func (g *Generator) opFfrint(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	sizeP := inst.P(2)
	srcWidth := 32
	if sizeP.Kind == ParamImmediate && sizeP.Imm == 8 {
		srcWidth = 64
	}
	dstWidth := regWidth(inst.Size)
	ty := floatTypeForWidth(dstWidth)
	if err := g.moveLocationToReg(srcLoc, srcWidth, Scratch1); err != nil {
		return err
	}
	g.asm.Scvtf(srcWidth, ty, TempF1, Scratch1)
	if err := g.storeFloatRegToLocation(dstLoc, dstWidth, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFfrflt lowers FFRFLT dst,src,size: converts src (at the byte width
// size names) into the instruction's own float width via fcvt.
func (g *Generator) opFfrflt(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	sizeP := inst.P(2)
	srcWidth := 32
	if sizeP.Kind == ParamImmediate && sizeP.Imm == 8 {
		srcWidth = 64
	}
	dstWidth := regWidth(inst.Size)
	if err := g.moveFloatLocationToReg(srcLoc, srcWidth, TempF1); err != nil {
		return err
	}
	switch {
	case srcWidth == 32 && dstWidth == 64:
		g.asm.FcvtSD(TempF1, TempF1)
	case srcWidth == 64 && dstWidth == 32:
		g.asm.FcvtDS(TempF1, TempF1)
	}
	if err := g.storeFloatRegToLocation(dstLoc, dstWidth, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFrnds rounds a double to single precision and back, the double ->
// single -> double round trip FRNDS names.
func (g *Generator) opFrnds(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMF)
	if err != nil {
		return err
	}
	srcLoc, err := classify(inst.P(1), PTypeMF)
	if err != nil {
		return err
	}
	if err := g.moveFloatLocationToReg(srcLoc, 64, TempF1); err != nil {
		return err
	}
	g.asm.FcvtDS(TempF1, TempF1)
	g.asm.FcvtSD(TempF1, TempF1)
	if err := g.storeFloatRegToLocation(dstLoc, 64, TempF1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
