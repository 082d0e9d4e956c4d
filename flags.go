// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// carryState tracks where the authoritative copy of the UML carry flag
// currently lives, so consecutive carry-consuming opcodes (ADDC/SUBB,
// ROLC/RORC) can skip reloading it when the native NZCV.C from the
// previous lowering is still valid.
type carryState int

const (
	// carryPoison means NZCV.C can't be trusted -- something was emitted in
	// between that may clobber flags (a call, block entry); a reload takes
	// the carry from FlagsReg bit 0.
	carryPoison carryState = iota
	// carryCanonical means NZCV.C holds the UML carry in add polarity, as
	// left by an ADDS/ADCS this lowering emitted or by a non-inverted
	// reload, and can be consumed directly by the next ADC without
	// reloading.
	carryCanonical
	// carryLogical means the UML carry bit has been flushed into bit 0 of
	// FlagsReg and NZCV no longer reflects it.
	carryLogical
)

// nzcvCBit is the bit position of the C flag within the NZCV system
// register's low 32 bits, per the AArch64 MRS/MSR NZCV encoding.
const nzcvCBit = 29

// storeCarry flushes the native C flag (assumed just set by an ADDS/SUBS
// family instruction) into bit 0 of FlagsReg, and marks the cache logical.
// AArch64's SUBS/SBCS leave C set to mean "no borrow", the inverse of
// UML's carry/borrow polarity; inverted must be true for the subtract
// family so the bit persisted into FlagsReg is UML's borrow, not ARM's
// no-borrow. cset naturally produces either polarity: CS reads the flag
// as-is, CC reads its complement.
func (g *Generator) storeCarry(inverted bool) {
	cc := arm64.CS
	if inverted {
		cc = arm64.CC
	}
	g.asm.Cset(64, Scratch1, cc)
	g.asm.Bfi(64, FlagsReg, Scratch1, 0, 1)
	g.carry = carryLogical
}

// loadCarry reconstructs NZCV.C from FlagsReg bit 0 when the cache isn't
// already canonical, so an ADC/SBC that follows sees the right carry-in.
// inverted must be true when the consuming instruction is an SBC/SUBB:
// AArch64's SBC wants a "no borrow" carry-in, the complement of the UML
// borrow bit FlagsReg holds, while ADC wants the UML carry bit untouched.
// The canonical shortcut only ever applies to the non-inverted case,
// since carryCanonical is only ever left behind by the add family.
func (g *Generator) loadCarry(inverted bool) {
	if !inverted && g.carry == carryCanonical {
		return
	}
	g.asm.MrsNzcv(Scratch1)
	if inverted {
		g.asm.Ubfx(64, Scratch2, FlagsReg, 0, 1)
		g.asm.CmpImm(64, Scratch2, 0, false)
		g.asm.Cset(64, Scratch2, arm64.EQ)
		g.asm.Bfi(64, Scratch1, Scratch2, nzcvCBit, 1)
	} else {
		g.asm.Bfi(64, Scratch1, FlagsReg, nzcvCBit, 1)
	}
	g.asm.MsrNzcv(Scratch1)
	// An inverted reload leaves NZCV.C in no-borrow polarity, so FlagsReg
	// stays the authoritative copy.
	if inverted {
		g.carry = carryLogical
	} else {
		g.carry = carryCanonical
	}
}

// flushCarry copies a live NZCV.C into FlagsReg bit 0 when the cache is
// canonical, before code that may clobber NZCV; in any other state FlagsReg
// is left unchanged.
func (g *Generator) flushCarry() {
	if g.carry == carryCanonical {
		g.storeCarry(false)
	}
}

// markCanonical records that the instruction just emitted set NZCV
// directly from a flag-setting ALU op, so a following carry consumer can
// skip loadCarry.
func (g *Generator) markCanonical() { g.carry = carryCanonical }

// poisonCarry marks the cache untrustworthy, used after any lowering that
// clobbers flags without going through storeCarry (a plain MOV/MOVZ
// destination write, or a CALLC/CALLH boundary).
func (g *Generator) poisonCarry() { g.carry = carryPoison }

// storeUnordered packs the emulated-flags FlagU bit (used by U/NU
// conditions, which FCMP's NZCV encoding doesn't carry a native bit for)
// into FlagsReg bit 4 from a boolean host register.
func (g *Generator) storeUnordered(fromUnordered arm64.Reg) {
	g.asm.Bfi(64, FlagsReg, fromUnordered, 4, 1)
}

// packFlags assembles the 5-bit UML flags byte (C,V,Z,S,U) from the native
// NZCV register plus the persisted U bit in FlagsReg, used by GETFLGS and
// SAVE. loadCarry brings NZCV.C back into UML polarity first, since a
// subtract family op may have left it flushed (and inverted) into
// FlagsReg rather than live.
func (g *Generator) packFlags(dst arm64.Reg) {
	g.loadCarry(false)
	g.asm.MrsNzcv(Scratch1)
	// NZCV layout: N=31,Z=30,C=29,V=28. UML layout: C=0,V=1,Z=2,S=3,U=4.
	g.asm.Ubfx(64, dst, Scratch1, 29, 1)       // C -> bit 0
	g.asm.Ubfx(64, Scratch2, Scratch1, 28, 1)  // V
	g.asm.Bfi(64, dst, Scratch2, 1, 1)
	g.asm.Ubfx(64, Scratch2, Scratch1, 30, 1) // Z
	g.asm.Bfi(64, dst, Scratch2, 2, 1)
	g.asm.Ubfx(64, Scratch2, Scratch1, 31, 1) // S (sign = native N)
	g.asm.Bfi(64, dst, Scratch2, 3, 1)
	g.asm.Ubfx(64, Scratch2, FlagsReg, 4, 1) // U persists outside NZCV
	g.asm.Bfi(64, dst, Scratch2, 4, 1)
}

// unpackFlags is the inverse of packFlags, used by SETFLGS and RESTORE: it
// rebuilds NZCV and FlagsReg's U bit from a 5-bit UML flags byte held in
// src. src's C bit is already UML-polarity carry, so it lands in both
// NZCV.C and FlagsReg bit 0 unmodified, and the cache goes canonical
// rather than poison.
func (g *Generator) unpackFlags(src arm64.Reg) {
	g.asm.MrsNzcv(Scratch1)
	g.asm.Ubfx(64, Scratch2, src, 0, 1)
	g.asm.Bfi(64, Scratch1, Scratch2, 29, 1) // C
	g.asm.Ubfx(64, Scratch2, src, 1, 1)
	g.asm.Bfi(64, Scratch1, Scratch2, 28, 1) // V
	g.asm.Ubfx(64, Scratch2, src, 2, 1)
	g.asm.Bfi(64, Scratch1, Scratch2, 30, 1) // Z
	g.asm.Ubfx(64, Scratch2, src, 3, 1)
	g.asm.Bfi(64, Scratch1, Scratch2, 31, 1) // S -> N
	g.asm.MsrNzcv(Scratch1)
	g.asm.Bfi(64, FlagsReg, src, 0, 1) // C, kept in sync for a later flush/reload
	g.asm.Ubfx(64, Scratch2, src, 4, 1)
	g.asm.Bfi(64, FlagsReg, Scratch2, 4, 1) // U
	g.markCanonical()
}
