// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// materializeImm loads a 64-bit constant into rd, picking the cheapest of
// six strategies in order, ported from get_imm_relative
// (drcbearm64.cpp:833-876):
//
//  1. a single MOVZ/MOVN, when all but one 16-bit chunk of the value is
//     zero (MOVZ) or one (MOVN);
//  2. a single bitmask-immediate ORR against the zero register, when the
//     value is a valid AArch64 logical immediate;
//  3. ADR, when the value is within 1MiB of the instruction materializing
//     it (the common case for loading the address of a nearby label);
//  4. a base-register-relative ADD/SUB, when the value lies within a
//     12-bit (optionally shifted) offset of BaseReg -- common because most
//     materialized constants are MachineState field addresses;
//  5. ADRP+ADD, when the value is within +-4GiB of the current page;
//  6. the full four-instruction MOVZ+MOVK+MOVK+MOVK sequence, always
//     applicable, used as the fallback.
func (g *Generator) materializeImm(rd arm64.Reg, val uint64) error {
	if tryMovzMovn(g.asm, rd, val) {
		return nil
	}
	if n, immr, imms, ok := arm64.EncodeBitmaskImmediate(val, 64); ok {
		g.asm.OrrImm(64, rd, arm64.XZR, n, immr, imms)
		return nil
	}
	pc := int64(g.asm.PC())
	if delta := int64(val) - pc; isSigned21(delta) {
		return g.asm.Adr(rd, delta)
	}
	if base := int64(g.basePtr); base != 0 {
		delta := int64(val) - base
		if delta >= 0 && delta <= 0xfff {
			return g.asm.AddImm(64, rd, BaseReg, uint32(delta), false)
		}
		if delta < 0 && -delta <= 0xfff {
			return g.asm.SubImm(64, rd, BaseReg, uint32(-delta), false)
		}
		if delta >= 0 && delta&0xfff == 0 && delta>>12 <= 0xfff {
			return g.asm.AddImm(64, rd, BaseReg, uint32(delta>>12), true)
		}
	}
	pageDelta := (int64(val) &^ 0xfff) - (pc &^ 0xfff)
	if isSigned21(pageDelta >> 12) {
		if err := g.asm.Adrp(rd, pageDelta); err != nil {
			return err
		}
		lowBits := val & 0xfff
		if lowBits != 0 {
			return g.asm.AddImm(64, rd, rd, uint32(lowBits), false)
		}
		return nil
	}
	movFullImmediate(g.asm, rd, val)
	return nil
}

func isSigned21(v int64) bool {
	return v >= -(1<<20) && v <= (1<<20)-1
}

// tryMovzMovn attempts the single-instruction wide-move encoding. Returns
// false (emitting nothing) if none of the four 16-bit halves alone
// reproduces val under MOVZ or MOVN semantics.
func tryMovzMovn(a *arm64.Assembler, rd arm64.Reg, val uint64) bool {
	chunks := [4]uint16{uint16(val), uint16(val >> 16), uint16(val >> 32), uint16(val >> 48)}
	nonzero, allButOneZero := 0, -1
	for i, c := range chunks {
		if c != 0 {
			nonzero++
			allButOneZero = i
		}
	}
	if nonzero == 0 {
		a.Movz(64, rd, 0, 0)
		return true
	}
	if nonzero == 1 {
		a.Movz(64, rd, chunks[allButOneZero], uint32(allButOneZero)*16)
		return true
	}
	inv := ^val
	invChunks := [4]uint16{uint16(inv), uint16(inv >> 16), uint16(inv >> 32), uint16(inv >> 48)}
	nonzero, allButOneZero = 0, -1
	for i, c := range invChunks {
		if c != 0 {
			nonzero++
			allButOneZero = i
		}
	}
	if nonzero <= 1 {
		idx := 0
		if nonzero == 1 {
			idx = allButOneZero
		}
		a.Movn(64, rd, invChunks[idx], uint32(idx)*16)
		return true
	}
	return false
}

// movFullImmediate emits the worst-case MOVZ+MOVK*3 sequence, skipping any
// zero chunk after the first (MOVZ already zeroes the rest of the
// register).
func movFullImmediate(a *arm64.Assembler, rd arm64.Reg, val uint64) {
	chunks := [4]uint16{uint16(val), uint16(val >> 16), uint16(val >> 32), uint16(val >> 48)}
	first := true
	for i, c := range chunks {
		if c == 0 && !first {
			continue
		}
		if first {
			a.Movz(64, rd, c, uint32(i)*16)
			first = false
		} else {
			a.Movk(64, rd, c, uint32(i)*16)
		}
	}
}
