// Completion: 95% - ARM64 instructions complete, production-ready
package arm64

import (
	"encoding/binary"
	"fmt"
)

// Assembler accumulates a little-endian stream of 32-bit AArch64
// instructions. It does not know anything about UML; it is the thin layer
// the code generator in this module sits on, playing the role the
// teacher's ARM64Out/ARM64Backend pair plays for the c67 compiler.
type Assembler struct {
	Code []byte
	// BaseAddr is the address the first byte of Code will be loaded at once
	// committed to the code cache. PC-relative encodings (ADR/ADRP/B/BL)
	// need it to compute relative displacements against their own address.
	BaseAddr uintptr
}

func New() *Assembler { return &Assembler{} }

// Offset returns the current emission position, in bytes from the start of
// the buffer.
func (a *Assembler) Offset() int { return len(a.Code) }

// PC returns the address the next emitted instruction will reside at, valid
// only after BaseAddr has been fixed up by the caller (normally right
// before committing the buffer into the executable code cache).
func (a *Assembler) PC() uintptr { return a.BaseAddr + uintptr(len(a.Code)) }

func (a *Assembler) emit32(instr uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], instr)
	a.Code = append(a.Code, buf[:]...)
}

// patch32 rewrites the instruction word at byte offset off.
func (a *Assembler) patch32(off int, instr uint32) {
	binary.LittleEndian.PutUint32(a.Code[off:off+4], instr)
}

func width64(w int) uint32 {
	if w == 64 {
		return 1
	}
	return 0
}

func isValidSigned(v int64, bits uint) bool {
	lo := -(int64(1) << (bits - 1))
	hi := (int64(1) << (bits - 1)) - 1
	return v >= lo && v <= hi
}

func isValidUnsigned(v uint64, bits uint) bool {
	return v < (uint64(1) << bits)
}

// ---------------------------------------------------------------------
// Data processing -- immediate
// ---------------------------------------------------------------------

// AddSubImm emits ADD/SUB/ADDS/SUBS (immediate). imm must fit 12 bits,
// optionally shifted left by 12 (shift12=true encodes "LSL #12").
func (a *Assembler) AddSubImm(sub, setFlags bool, width int, rd, rn Reg, imm uint32, shift12 bool) error {
	if imm > 0xfff {
		return fmt.Errorf("arm64: immediate %#x does not fit 12 bits", imm)
	}
	var op, s uint32
	if sub {
		op = 1
	}
	if setFlags {
		s = 1
	}
	var sh uint32
	if shift12 {
		sh = 1
	}
	instr := (width64(width) << 31) | (op << 30) | (s << 29) | (0x11 << 24) | (sh << 22) | (imm << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
	return nil
}

func (a *Assembler) AddImm(width int, rd, rn Reg, imm uint32, shift12 bool) error {
	return a.AddSubImm(false, false, width, rd, rn, imm, shift12)
}
func (a *Assembler) SubImm(width int, rd, rn Reg, imm uint32, shift12 bool) error {
	return a.AddSubImm(true, false, width, rd, rn, imm, shift12)
}
func (a *Assembler) AddsImm(width int, rd, rn Reg, imm uint32, shift12 bool) error {
	return a.AddSubImm(false, true, width, rd, rn, imm, shift12)
}
func (a *Assembler) SubsImm(width int, rd, rn Reg, imm uint32, shift12 bool) error {
	return a.AddSubImm(true, true, width, rd, rn, imm, shift12)
}
func (a *Assembler) CmpImm(width int, rn Reg, imm uint32, shift12 bool) error {
	return a.AddSubImm(true, true, width, XZR, rn, imm, shift12)
}

// ---------------------------------------------------------------------
// Data processing -- shifted register
// ---------------------------------------------------------------------

type ShiftType uint32

const (
	LSL ShiftType = 0
	LSR ShiftType = 1
	ASR ShiftType = 2
	RORShift ShiftType = 3 // only valid for logical (register) instructions
)

func (a *Assembler) addSubShiftedReg(sub, setFlags bool, width int, rd, rn, rm Reg, shift ShiftType, amount uint32) {
	var op, s uint32
	if sub {
		op = 1
	}
	if setFlags {
		s = 1
	}
	instr := (width64(width) << 31) | (op << 30) | (s << 29) | (0x0B << 24) | (uint32(shift&3) << 22) | (uint32(rm) << 16) | ((amount & 0x3f) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) AddReg(width int, rd, rn, rm Reg) { a.addSubShiftedReg(false, false, width, rd, rn, rm, LSL, 0) }
func (a *Assembler) SubReg(width int, rd, rn, rm Reg) { a.addSubShiftedReg(true, false, width, rd, rn, rm, LSL, 0) }
func (a *Assembler) AddsReg(width int, rd, rn, rm Reg) {
	a.addSubShiftedReg(false, true, width, rd, rn, rm, LSL, 0)
}
func (a *Assembler) SubsReg(width int, rd, rn, rm Reg) {
	a.addSubShiftedReg(true, true, width, rd, rn, rm, LSL, 0)
}
func (a *Assembler) CmpReg(width int, rn, rm Reg) { a.SubsReg(width, XZR, rn, rm) }
func (a *Assembler) CmnReg(width int, rn, rm Reg) { a.AddsReg(width, XZR, rn, rm) }
func (a *Assembler) NegReg(width int, rd, rm Reg) { a.SubReg(width, rd, XZR, rm) }
func (a *Assembler) NegsReg(width int, rd, rm Reg) { a.SubsReg(width, rd, XZR, rm) }

func (a *Assembler) ShiftedReg(width int, rd, rn, rm Reg, shift ShiftType, amount uint32) {
	a.addSubShiftedReg(false, false, width, rd, rn, rm, shift, amount)
}

// ---------------------------------------------------------------------
// ADC/ADCS/SBC/SBCS (carry-in)
// ---------------------------------------------------------------------

func (a *Assembler) addSubCarry(sub, setFlags bool, width int, rd, rn, rm Reg) {
	var op, s uint32
	if sub {
		op = 1
	}
	if setFlags {
		s = 1
	}
	instr := (width64(width) << 31) | (op << 30) | (s << 29) | (0xD0 << 21) | (uint32(rm) << 16) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Adc(width int, rd, rn, rm Reg)  { a.addSubCarry(false, false, width, rd, rn, rm) }
func (a *Assembler) Adcs(width int, rd, rn, rm Reg) { a.addSubCarry(false, true, width, rd, rn, rm) }
func (a *Assembler) Sbc(width int, rd, rn, rm Reg)  { a.addSubCarry(true, false, width, rd, rn, rm) }
func (a *Assembler) Sbcs(width int, rd, rn, rm Reg) { a.addSubCarry(true, true, width, rd, rn, rm) }

// ---------------------------------------------------------------------
// Move wide immediate: MOVZ/MOVN/MOVK
// ---------------------------------------------------------------------

func (a *Assembler) moveWide(opc uint32, width int, rd Reg, imm16 uint16, hw uint32) {
	instr := (width64(width) << 31) | (opc << 29) | (0x25 << 23) | (hw << 21) | (uint32(imm16) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Movz(width int, rd Reg, imm16 uint16, shift uint32) { a.moveWide(2, width, rd, imm16, shift/16) }
func (a *Assembler) Movn(width int, rd Reg, imm16 uint16, shift uint32) { a.moveWide(0, width, rd, imm16, shift/16) }
func (a *Assembler) Movk(width int, rd Reg, imm16 uint16, shift uint32) { a.moveWide(3, width, rd, imm16, shift/16) }

// ---------------------------------------------------------------------
// Logical -- register and immediate
// ---------------------------------------------------------------------

type logicalOp uint32

const (
	logAnd  logicalOp = 0
	logOrr  logicalOp = 1
	logEor  logicalOp = 2
	logAnds logicalOp = 3
)

func (a *Assembler) logicalShiftedReg(op logicalOp, width int, rd, rn, rm Reg, shift ShiftType, amount uint32, invert bool) {
	var n uint32
	if invert {
		n = 1
	}
	instr := (width64(width) << 31) | (uint32(op) << 29) | (0x0A << 24) | (uint32(shift&3) << 22) | (n << 21) | (uint32(rm) << 16) | ((amount & 0x3f) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) AndReg(width int, rd, rn, rm Reg)  { a.logicalShiftedReg(logAnd, width, rd, rn, rm, LSL, 0, false) }
func (a *Assembler) AndsReg(width int, rd, rn, rm Reg) { a.logicalShiftedReg(logAnds, width, rd, rn, rm, LSL, 0, false) }
func (a *Assembler) OrrReg(width int, rd, rn, rm Reg)  { a.logicalShiftedReg(logOrr, width, rd, rn, rm, LSL, 0, false) }
func (a *Assembler) EorReg(width int, rd, rn, rm Reg)  { a.logicalShiftedReg(logEor, width, rd, rn, rm, LSL, 0, false) }
func (a *Assembler) BicReg(width int, rd, rn, rm Reg)  { a.logicalShiftedReg(logAnd, width, rd, rn, rm, LSL, 0, true) }
func (a *Assembler) TstReg(width int, rn, rm Reg)      { a.logicalShiftedReg(logAnds, width, XZR, rn, rm, LSL, 0, false) }
func (a *Assembler) MvnReg(width int, rd, rm Reg)      { a.logicalShiftedReg(logOrr, width, rd, XZR, rm, LSL, 0, true) }
func (a *Assembler) MovReg(width int, rd, rm Reg)      { a.OrrReg(width, rd, XZR, rm) }

func (a *Assembler) logicalImm(op logicalOp, width int, rd, rn Reg, n, immr, imms uint8) {
	instr := (width64(width) << 31) | (uint32(op) << 29) | (0x24 << 23) | (uint32(n) << 22) | (uint32(immr&0x3f) << 16) | (uint32(imms&0x3f) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// AndImm/OrrImm/EorImm/AndsImm emit the logical-immediate forms. The caller
// must have already validated the immediate with EncodeBitmaskImmediate.
func (a *Assembler) AndImm(width int, rd, rn Reg, n, immr, imms uint8) {
	a.logicalImm(logAnd, width, rd, rn, n, immr, imms)
}
func (a *Assembler) OrrImm(width int, rd, rn Reg, n, immr, imms uint8) {
	a.logicalImm(logOrr, width, rd, rn, n, immr, imms)
}
func (a *Assembler) EorImm(width int, rd, rn Reg, n, immr, imms uint8) {
	a.logicalImm(logEor, width, rd, rn, n, immr, imms)
}
func (a *Assembler) AndsImm(width int, rd, rn Reg, n, immr, imms uint8) {
	a.logicalImm(logAnds, width, rd, rn, n, immr, imms)
}

// ---------------------------------------------------------------------
// Bitfield: UBFM/SBFM/BFM and their UBFX/SBFX/BFI/BFXIL aliases
// ---------------------------------------------------------------------

type bitfieldOp uint32

const (
	bfSbfm bitfieldOp = 0
	bfBfm  bitfieldOp = 1
	bfUbfm bitfieldOp = 2
)

func (a *Assembler) bitfield(op bitfieldOp, width int, rd, rn Reg, immr, imms uint32) {
	n := width64(width)
	instr := (width64(width) << 31) | (uint32(op) << 29) | (0x26 << 23) | (n << 22) | ((immr & 0x3f) << 16) | ((imms & 0x3f) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// Ubfx extracts a `width`-bit-register field of `widthBits` bits starting at
// bit `lsb` of rn, zero-extending into rd.
func (a *Assembler) Ubfx(width int, rd, rn Reg, lsb, widthBits uint32) {
	a.bitfield(bfUbfm, width, rd, rn, lsb, lsb+widthBits-1)
}
func (a *Assembler) Sbfx(width int, rd, rn Reg, lsb, widthBits uint32) {
	a.bitfield(bfSbfm, width, rd, rn, lsb, lsb+widthBits-1)
}

// Bfi inserts the low widthBits bits of rn into rd at bit position lsb,
// leaving the rest of rd unchanged.
func (a *Assembler) Bfi(width int, rd, rn Reg, lsb, widthBits uint32) {
	regWidth := uint32(width)
	immr := (regWidth - lsb) % regWidth
	imms := widthBits - 1
	a.bitfield(bfBfm, width, rd, rn, immr, imms)
}

// Bfxil copies widthBits bits starting at bit lsb of rn into the low
// widthBits bits of rd.
func (a *Assembler) Bfxil(width int, rd, rn Reg, lsb, widthBits uint32) {
	a.bitfield(bfBfm, width, rd, rn, lsb, lsb+widthBits-1)
}

// Ubfiz is the zero-extending "insert" form of UBFM: it places the low
// widthBits bits of rn at bit lsb of rd, zeroing the rest of rd.
func (a *Assembler) Ubfiz(width int, rd, rn Reg, lsb, widthBits uint32) {
	regWidth := uint32(width)
	immr := (regWidth - lsb) % regWidth
	imms := widthBits - 1
	a.bitfield(bfUbfm, width, rd, rn, immr, imms)
}

// ---------------------------------------------------------------------
// Shift-by-register aliases (LSLV/LSRV/ASRV/RORV) and CLZ/RBIT/REV
// ---------------------------------------------------------------------

type dataProc2Op uint32

const (
	dp2Lslv dataProc2Op = 0x08
	dp2Lsrv dataProc2Op = 0x09
	dp2Asrv dataProc2Op = 0x0A
	dp2Rorv dataProc2Op = 0x0B
	dp2Udiv dataProc2Op = 0x02
	dp2Sdiv dataProc2Op = 0x03
)

func (a *Assembler) dataProc2(op dataProc2Op, width int, rd, rn, rm Reg) {
	instr := (width64(width) << 31) | (0x1AC00000) | (uint32(rm) << 16) | (uint32(op) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Lslv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Lslv, width, rd, rn, rm) }
func (a *Assembler) Lsrv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Lsrv, width, rd, rn, rm) }
func (a *Assembler) Asrv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Asrv, width, rd, rn, rm) }
func (a *Assembler) Rorv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Rorv, width, rd, rn, rm) }
func (a *Assembler) Udiv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Udiv, width, rd, rn, rm) }
func (a *Assembler) Sdiv(width int, rd, rn, rm Reg) { a.dataProc2(dp2Sdiv, width, rd, rn, rm) }

// data-processing (1 source): CLZ, RBIT, REV
type dataProc1Op uint32

const (
	dp1Rbit  dataProc1Op = 0x00
	dp1Rev16 dataProc1Op = 0x01
	dp1Rev32 dataProc1Op = 0x02 // REV (32-bit form) / REV32 (64-bit form)
	dp1Rev64 dataProc1Op = 0x03 // REV (64-bit form only)
	dp1Clz   dataProc1Op = 0x04
	dp1Cls   dataProc1Op = 0x05
)

func (a *Assembler) dataProc1(op dataProc1Op, width int, rd, rn Reg) {
	instr := (width64(width) << 31) | 0x5AC00000 | (uint32(op) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Clz(width int, rd, rn Reg)  { a.dataProc1(dp1Clz, width, rd, rn) }
func (a *Assembler) Rbit(width int, rd, rn Reg) { a.dataProc1(dp1Rbit, width, rd, rn) }

// Rev reverses byte order across the whole register at either width: the
// 32-bit REV for width 32, the 64-bit REV for width 64.
func (a *Assembler) Rev(width int, rd, rn Reg) {
	if width == 64 {
		a.dataProc1(dp1Rev64, width, rd, rn)
	} else {
		a.dataProc1(dp1Rev32, width, rd, rn)
	}
}
func (a *Assembler) Rev32(rd, rn Reg) { a.dataProc1(dp1Rev32, 64, rd, rn) }

// ---------------------------------------------------------------------
// Multiply: MADD/MSUB/UMULH/SMULH/UMULL/SMULL/UMADDL/SMADDL
// ---------------------------------------------------------------------

func (a *Assembler) dataProc3(op31_29, o0 uint32, ra Reg, width int, rd, rn, rm Reg) {
	instr := (width64(width) << 31) | (op31_29 << 24) | (uint32(rm) << 16) | (o0 << 15) | (uint32(ra) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Mul(width int, rd, rn, rm Reg)  { a.dataProc3(0x1B, 0, XZR, width, rd, rn, rm) }
func (a *Assembler) Mneg(width int, rd, rn, rm Reg) { a.dataProc3(0x1B, 1, XZR, width, rd, rn, rm) }
func (a *Assembler) Madd(width int, rd, rn, rm, ra Reg) { a.dataProc3(0x1B, 0, ra, width, rd, rn, rm) }
func (a *Assembler) Msub(width int, rd, rn, rm, ra Reg) { a.dataProc3(0x1B, 1, ra, width, rd, rn, rm) }

// Umulh/Smulh/Umull/Smull are 64-bit-only widening multiplies (op31_29
// selects the variant per the ARM ARM's "Data-processing (3 source)" table,
// with sf forced to 1 and the low 32 bits of operands used for the
// narrow *mull forms).
func (a *Assembler) Umulh(rd, rn, rm Reg) {
	instr := uint32(1)<<31 | (0xDE << 21) | (uint32(rm) << 16) | (0x1F << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Smulh(rd, rn, rm Reg) {
	instr := uint32(1)<<31 | (0xDA << 21) | (uint32(rm) << 16) | (0x1F << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Umull(rd, rn, rm Reg) {
	instr := uint32(1)<<31 | (0xDD << 21) | (uint32(rm) << 16) | (uint32(XZR) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Smull(rd, rn, rm Reg) {
	instr := uint32(1)<<31 | (0xD9 << 21) | (uint32(rm) << 16) | (uint32(XZR) << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// ---------------------------------------------------------------------
// Conditional select / set
// ---------------------------------------------------------------------

func (a *Assembler) Csel(width int, rd, rn, rm Reg, cond Cond) {
	instr := (width64(width) << 31) | (0xD4 << 21) | (uint32(rm) << 16) | (uint32(cond) << 12) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Csinc(width int, rd, rn, rm Reg, cond Cond) {
	instr := (width64(width) << 31) | (0xD4 << 21) | (uint32(rm) << 16) | (uint32(cond) << 12) | (1 << 10) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Cset(width int, rd Reg, cond Cond) { a.Csinc(width, rd, XZR, XZR, cond.Invert()) }

// ---------------------------------------------------------------------
// Branches
// ---------------------------------------------------------------------

// B emits an unconditional branch with a pre-computed word offset
// (instructions, signed) from this instruction. Returns the offset of the
// instruction so the caller can patch it later via PatchBranch.
func (a *Assembler) B(wordOffset int32) int {
	off := a.Offset()
	a.emit32(0x14000000 | (uint32(wordOffset) & 0x3ffffff))
	return off
}

func (a *Assembler) Bl(wordOffset int32) int {
	off := a.Offset()
	a.emit32(0x94000000 | (uint32(wordOffset) & 0x3ffffff))
	return off
}

func (a *Assembler) Br(rn Reg) { a.emit32(0xD61F0000 | (uint32(rn) << 5)) }
func (a *Assembler) Blr(rn Reg) { a.emit32(0xD63F0000 | (uint32(rn) << 5)) }
func (a *Assembler) Ret(rn Reg) { a.emit32(0xD65F0000 | (uint32(rn) << 5)) }

func (a *Assembler) BCond(cond Cond, wordOffset int32) int {
	off := a.Offset()
	a.emit32(0x54000000 | ((uint32(wordOffset) & 0x7ffff) << 5) | uint32(cond&0xf))
	return off
}

func (a *Assembler) Cbz(width int, rt Reg, wordOffset int32) int {
	off := a.Offset()
	a.emit32((width64(width) << 31) | 0x34000000 | ((uint32(wordOffset) & 0x7ffff) << 5) | uint32(rt))
	return off
}
func (a *Assembler) Cbnz(width int, rt Reg, wordOffset int32) int {
	off := a.Offset()
	a.emit32((width64(width) << 31) | 0x35000000 | ((uint32(wordOffset) & 0x7ffff) << 5) | uint32(rt))
	return off
}

// Tbz/Tbnz test a single bit (0..63) of rt and branch on it.
func (a *Assembler) Tbz(rt Reg, bit uint, wordOffset int32) int {
	off := a.Offset()
	b5 := uint32(bit>>5) & 1
	b40 := uint32(bit) & 0x1f
	a.emit32((b5 << 31) | 0x36000000 | (b40 << 19) | ((uint32(wordOffset) & 0x3fff) << 5) | uint32(rt))
	return off
}
func (a *Assembler) Tbnz(rt Reg, bit uint, wordOffset int32) int {
	off := a.Offset()
	b5 := uint32(bit>>5) & 1
	b40 := uint32(bit) & 0x1f
	a.emit32((b5 << 31) | 0x37000000 | (b40 << 19) | ((uint32(wordOffset) & 0x3fff) << 5) | uint32(rt))
	return off
}

// PatchBranch rewrites the word offset field of a B/BL emitted at byte
// offset instrOff, recomputing it from the now-known target offset.
func (a *Assembler) PatchBranch(instrOff, targetOff int) error {
	delta := int32((targetOff - instrOff) / 4)
	if !isValidSigned(int64(delta), 26) {
		return fmt.Errorf("arm64: branch target out of range (%d words)", delta)
	}
	old := binary.LittleEndian.Uint32(a.Code[instrOff : instrOff+4])
	old &^= 0x3ffffff
	old |= uint32(delta) & 0x3ffffff
	a.patch32(instrOff, old)
	return nil
}

// PatchBCond rewrites a B.cond/CBZ/CBNZ's 19-bit offset field.
func (a *Assembler) PatchBCond(instrOff, targetOff int) error {
	delta := int32((targetOff - instrOff) / 4)
	if !isValidSigned(int64(delta), 19) {
		return fmt.Errorf("arm64: conditional branch target out of range (%d words)", delta)
	}
	old := binary.LittleEndian.Uint32(a.Code[instrOff : instrOff+4])
	old &^= 0x7ffff << 5
	old |= (uint32(delta) & 0x7ffff) << 5
	a.patch32(instrOff, old)
	return nil
}

// PatchTb rewrites a TBZ/TBNZ's 14-bit offset field.
func (a *Assembler) PatchTb(instrOff, targetOff int) error {
	delta := int32((targetOff - instrOff) / 4)
	if !isValidSigned(int64(delta), 14) {
		return fmt.Errorf("arm64: bit-test branch target out of range (%d words)", delta)
	}
	old := binary.LittleEndian.Uint32(a.Code[instrOff : instrOff+4])
	old &^= 0x3fff << 5
	old |= (uint32(delta) & 0x3fff) << 5
	a.patch32(instrOff, old)
	return nil
}

// ---------------------------------------------------------------------
// PC-relative address materialization: ADR/ADRP
// ---------------------------------------------------------------------

func (a *Assembler) adr(op uint32, rd Reg, imm int64) {
	immlo := uint32(imm) & 3
	immhi := uint32(imm>>2) & 0x7ffff
	instr := (op << 31) | (immlo << 29) | 0x10000000 | (immhi << 5) | uint32(rd)
	a.emit32(instr)
}

// Adr emits ADR rd, targetPC-relative. imm is the byte displacement from
// this instruction's own address, and must fit a signed 21-bit field.
func (a *Assembler) Adr(rd Reg, imm int64) error {
	if !isValidSigned(imm, 21) {
		return fmt.Errorf("arm64: ADR offset %d out of range", imm)
	}
	a.adr(0, rd, imm)
	return nil
}

// Adrp emits ADRP rd, targetPage-relative. imm is the page-aligned byte
// displacement (a multiple of 4096) from this instruction's own page, and
// must fit a signed 21-bit field once divided by 4096.
func (a *Assembler) Adrp(rd Reg, pageImm int64) error {
	if pageImm&0xfff != 0 {
		return fmt.Errorf("arm64: ADRP offset %#x not page aligned", pageImm)
	}
	if !isValidSigned(pageImm>>12, 21) {
		return fmt.Errorf("arm64: ADRP offset %d out of range", pageImm>>12)
	}
	a.adr(1, rd, pageImm>>12)
	return nil
}

// ---------------------------------------------------------------------
// Loads and stores
// ---------------------------------------------------------------------

// sizeShift maps an access size in bytes to the ARM ARM's "size" field
// shift amount (byte=0, half=1, word=2, dword=3).
func SizeShift(bytes int) uint {
	switch bytes {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 3
	}
}

// LdrStrImm9 emits the unscaled signed 9-bit immediate form (LDUR/STUR),
// used when the offset isn't a multiple of the access size.
func (a *Assembler) LdrStrImm9(load bool, sizeBits uint, rt, rn Reg, imm int32) error {
	if !isValidSigned(int64(imm), 9) {
		return fmt.Errorf("arm64: LDUR/STUR offset %d out of range", imm)
	}
	var opc uint32
	if load {
		opc = 1
	}
	instr := (uint32(sizeBits) << 30) | 0x38000000 | (opc << 22) | ((uint32(imm) & 0x1ff) << 12) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
	return nil
}

// LdrStrImm12 emits the scaled unsigned 12-bit immediate form (LDR/STR).
// offset must be a non-negative multiple of (1 << sizeShift).
func (a *Assembler) LdrStrImm12(load bool, sizeBits uint, rt, rn Reg, offset uint32) error {
	if offset&((1<<sizeBits)-1) != 0 {
		return fmt.Errorf("arm64: LDR/STR offset %#x not aligned to size", offset)
	}
	scaled := offset >> sizeBits
	if scaled > 0xfff {
		return fmt.Errorf("arm64: LDR/STR offset %#x out of range", offset)
	}
	var opc uint32
	if load {
		opc = 1
	}
	instr := (uint32(sizeBits) << 30) | 0x39000000 | (opc << 22) | (scaled << 10) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
	return nil
}

// FLdrStrImm9/FLdrStrImm12 are LdrStrImm9/LdrStrImm12's SIMD&FP-register
// counterparts (the V bit distinguishes the two register files at an
// otherwise identical encoding), used to spill/fill S/D registers for
// FLOAD/FSTORE/FREAD/FWRITE.
func (a *Assembler) FLdrStrImm9(load bool, sizeBits uint, rt, rn Reg, imm int32) error {
	if !isValidSigned(int64(imm), 9) {
		return fmt.Errorf("arm64: LDUR/STUR (fp) offset %d out of range", imm)
	}
	var opc uint32
	if load {
		opc = 1
	}
	instr := (uint32(sizeBits) << 30) | 0x3C000000 | (opc << 22) | ((uint32(imm) & 0x1ff) << 12) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
	return nil
}

func (a *Assembler) FLdrStrImm12(load bool, sizeBits uint, rt, rn Reg, offset uint32) error {
	if offset&((1<<sizeBits)-1) != 0 {
		return fmt.Errorf("arm64: LDR/STR (fp) offset %#x not aligned to size", offset)
	}
	scaled := offset >> sizeBits
	if scaled > 0xfff {
		return fmt.Errorf("arm64: LDR/STR (fp) offset %#x out of range", offset)
	}
	var opc uint32
	if load {
		opc = 1
	}
	instr := (uint32(sizeBits) << 30) | 0x3D000000 | (opc << 22) | (scaled << 10) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
	return nil
}

// LdrStrReg emits the register-offset form, with rm shifted left by
// sizeShift if shifted is true (the "natural" indexed addressing mode).
func (a *Assembler) LdrStrReg(load bool, sizeBits uint, rt, rn, rm Reg, shifted bool) {
	var opc uint32
	if load {
		opc = 1
	}
	var s uint32
	if shifted {
		s = 1
	}
	instr := (uint32(sizeBits) << 30) | 0x38200800 | (opc << 22) | (uint32(rm) << 16) | (0b011 << 13) | (s << 12) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
}

// LdrsImm9/LdrsImm12: sign-extending loads (LDRSB/LDRSH/LDRSW), opc=10
// (sign-extend to 64-bit) for the byte/half forms, and a distinct top-level
// encoding for LDRSW.
func (a *Assembler) LdrsbImm9(width int, rt, rn Reg, imm int32) error {
	return a.ldrsImm9(0, width, rt, rn, imm)
}
func (a *Assembler) LdrshImm9(width int, rt, rn Reg, imm int32) error {
	return a.ldrsImm9(1, width, rt, rn, imm)
}
func (a *Assembler) LdrswImm9(rt, rn Reg, imm int32) error { return a.ldrsImm9(2, 64, rt, rn, imm) }

func (a *Assembler) ldrsImm9(sizeBits uint, width int, rt, rn Reg, imm int32) error {
	if !isValidSigned(int64(imm), 9) {
		return fmt.Errorf("arm64: LDURS offset %d out of range", imm)
	}
	opc := uint32(2) // sign extend variant using the 64-bit destination encoding
	if width == 32 && sizeBits != 2 {
		opc = 3
	}
	instr := (uint32(sizeBits) << 30) | 0x38000000 | (opc << 22) | ((uint32(imm) & 0x1ff) << 12) | (uint32(rn) << 5) | uint32(rt)
	a.emit32(instr)
	return nil
}

// Load/store pair, used by the entry/exit shim to save fp+lr.
func (a *Assembler) StpPre(rt1, rt2, rn Reg, imm int32) error {
	return a.ldpStp(false, true, true, rt1, rt2, rn, imm)
}
func (a *Assembler) LdpPost(rt1, rt2, rn Reg, imm int32) error {
	return a.ldpStp(true, true, false, rt1, rt2, rn, imm)
}
func (a *Assembler) StpOffset(rt1, rt2, rn Reg, imm int32) error {
	return a.ldpStp(false, false, false, rt1, rt2, rn, imm)
}
func (a *Assembler) LdpOffset(rt1, rt2, rn Reg, imm int32) error {
	return a.ldpStp(true, false, false, rt1, rt2, rn, imm)
}

func (a *Assembler) ldpStp(load, writeback, preIndex bool, rt1, rt2, rn Reg, imm int32) error {
	if imm&7 != 0 {
		return fmt.Errorf("arm64: LDP/STP offset %d not 8-byte aligned", imm)
	}
	scaled := imm / 8
	if !isValidSigned(int64(scaled), 7) {
		return fmt.Errorf("arm64: LDP/STP offset %d out of range", imm)
	}
	var l, idx uint32
	if load {
		l = 1
	}
	if writeback && preIndex {
		idx = 0x3 // pre-indexed
	} else if writeback {
		idx = 0x1 // post-indexed
	} else {
		idx = 0x2 // signed offset
	}
	instr := uint32(1)<<31 | 0x28000000 | (idx << 23) | (l << 22) | ((uint32(scaled) & 0x7f) << 15) | (uint32(rt2) << 10) | (uint32(rn) << 5) | uint32(rt1)
	a.emit32(instr)
	return nil
}

// ---------------------------------------------------------------------
// Vector/float scalar arithmetic (double and single precision)
// ---------------------------------------------------------------------

type FpType uint32

const (
	FPSingle FpType = 0
	FPDouble FpType = 1
)

func (a *Assembler) fp2Source(opcode uint32, ty FpType, rd, rn, rm Reg) {
	instr := 0x1E200800 | (uint32(ty) << 22) | (uint32(rm) << 16) | (opcode << 12) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Fadd(ty FpType, rd, rn, rm Reg) { a.fp2Source(0x2, ty, rd, rn, rm) }
func (a *Assembler) Fsub(ty FpType, rd, rn, rm Reg) { a.fp2Source(0x3, ty, rd, rn, rm) }
func (a *Assembler) Fmul(ty FpType, rd, rn, rm Reg) { a.fp2Source(0x0, ty, rd, rn, rm) }
func (a *Assembler) Fdiv(ty FpType, rd, rn, rm Reg) { a.fp2Source(0x1, ty, rd, rn, rm) }

func (a *Assembler) fp1Source(opcode uint32, ty FpType, rd, rn Reg) {
	instr := 0x1E204000 | (uint32(ty) << 22) | (opcode << 15) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

func (a *Assembler) Fneg(ty FpType, rd, rn Reg)  { a.fp1Source(0x02, ty, rd, rn) }
func (a *Assembler) Fabs(ty FpType, rd, rn Reg)  { a.fp1Source(0x01, ty, rd, rn) }
func (a *Assembler) Fsqrt(ty FpType, rd, rn Reg) { a.fp1Source(0x03, ty, rd, rn) }
func (a *Assembler) FmovReg(ty FpType, rd, rn Reg) { a.fp1Source(0x00, ty, rd, rn) }
func (a *Assembler) FcvtDS(rd, rn Reg)            { a.fp1Source(0x04, FPDouble, rd, rn) } // double->single
func (a *Assembler) FcvtSD(rd, rn Reg)            { a.fp1Source(0x05, FPSingle, rd, rn) } // single->double

func (a *Assembler) Fcmp(ty FpType, rn, rm Reg) {
	instr := 0x1E202000 | (uint32(ty) << 22) | (uint32(rm) << 16) | (uint32(rn) << 5)
	a.emit32(instr)
}
func (a *Assembler) FcmpZero(ty FpType, rn Reg) {
	instr := 0x1E202008 | (uint32(ty) << 22) | (uint32(rn) << 5)
	a.emit32(instr)
}

// Fcsel: conditional select between float registers.
func (a *Assembler) Fcsel(ty FpType, rd, rn, rm Reg, cond Cond) {
	instr := 0x1E200C00 | (uint32(ty) << 22) | (uint32(rm) << 16) | (uint32(cond) << 12) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// Integer<->float moves (FMOV between X/W and D/S, bit pattern preserving).
func (a *Assembler) FmovFloatToInt(width int, rd Reg, ty FpType, rn Reg) {
	instr := (width64(width) << 31) | 0x1E260000 | (uint32(ty) << 22) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) FmovIntToFloat(width int, ty FpType, rd Reg, rn Reg) {
	instr := (width64(width) << 31) | 0x1E270000 | (uint32(ty) << 22) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// scvtf/ucvtf (integer -> float) and fcvtzs/fcvtzu (float -> integer,
// round toward zero), plus the rounding-mode variants used by FTOINT.
func (a *Assembler) Scvtf(width int, ty FpType, rd Reg, rn Reg) {
	instr := (width64(width) << 31) | 0x1E220000 | (uint32(ty) << 22) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}
func (a *Assembler) Ucvtf(width int, ty FpType, rd Reg, rn Reg) {
	instr := (width64(width) << 31) | 0x1E230000 | (uint32(ty) << 22) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

type RoundMode uint32

const (
	RoundNearest RoundMode = 0 // fcvtns/fcvtnu
	RoundPlusInf RoundMode = 1 // fcvtps/fcvtpu (ceil)
	RoundMinInf  RoundMode = 2 // fcvtms/fcvtmu (floor)
	RoundZero    RoundMode = 3 // fcvtzs/fcvtzu (trunc)
)

func (a *Assembler) Fcvt(mode RoundMode, signed bool, width int, ty FpType, rd, rn Reg) {
	var u uint32
	if !signed {
		u = 1
	}
	op := uint32(mode)
	instr := (width64(width) << 31) | 0x1E000000 | (uint32(ty) << 22) | (1 << 21) | (op << 19) | (u << 16) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// Frintx round-to-integral (FRINTA/FRINTM/.../FRINTX) -- FRNDS uses the
// plain round-to-nearest-even variant (FRINTX preserves the invalid
// exception like the original's double->single->double round trip relies
// on FCVT, not FRINT; kept here for completeness of the fp opcode group).
func (a *Assembler) Frintx(ty FpType, rd, rn Reg) {
	instr := 0x1E204000 | (uint32(ty) << 22) | (0x0E << 15) | (uint32(rn) << 5) | uint32(rd)
	a.emit32(instr)
}

// ---------------------------------------------------------------------
// NZCV access
// ---------------------------------------------------------------------

// MrsNzcv reads the NZCV flags into a general register (bits [31:28] hold
// N,Z,C,V; the rest of the register is zero).
func (a *Assembler) MrsNzcv(rt Reg) { a.emit32(0xD53B4200 | uint32(rt)) }

// MsrNzcv writes a general register's top 4 bits back into NZCV.
func (a *Assembler) MsrNzcv(rt Reg) { a.emit32(0xD51B4200 | uint32(rt)) }

// Nop/Brk for completeness (end-of-block trap path).
func (a *Assembler) Nop()          { a.emit32(0xD503201F) }
func (a *Assembler) Brk(imm16 uint16) { a.emit32(0xD4200000 | (uint32(imm16) << 5)) }
