// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// emitLoadStoreAbs loads (load=true) or stores a value at the fixed
// absolute address addr, ported from emit_ldr_str_base_mem
// (drcbearm64.cpp:880-958). Address selection tries, in order:
//
//  1. a scaled 12-bit unsigned offset from BaseReg (LDR/STR), when addr -
//     basePtr is a non-negative multiple of the access size within range;
//  2. an unscaled signed 9-bit offset from BaseReg (LDUR/STUR), when the
//     delta isn't size-aligned but still fits;
//  3. ADR directly to addr, when it's within 1MiB of the current PC (rare,
//     but cheap when it applies);
//  4. ADRP to put the address's page into MemScratch, then a scaled
//     load/store at the page offset when it is size-aligned, otherwise an
//     ADD of the offset and an unscaled load/store, covering the +-4GiB
//     case;
//  5. full immediate materialization into MemScratch as the final
//     fallback.
func (g *Generator) emitLoadStoreAbs(load bool, sizeBytes int, rt arm64.Reg, addr uintptr) error {
	sizeShift := arm64.SizeShift(sizeBytes)
	if base := g.basePtr; base != 0 {
		delta := int64(addr) - int64(base)
		if delta >= 0 && delta&((1<<sizeShift)-1) == 0 && (delta>>sizeShift) <= 0xfff {
			return g.asm.LdrStrImm12(load, sizeShift, rt, BaseReg, uint32(delta))
		}
		if delta >= -256 && delta <= 255 {
			return g.asm.LdrStrImm9(load, sizeShift, rt, BaseReg, int32(delta))
		}
	}
	pc := int64(g.asm.PC())
	if delta := int64(addr) - pc; delta >= -(1<<20) && delta <= (1<<20)-1 {
		if err := g.asm.Adr(MemScratch, delta); err != nil {
			return err
		}
		return g.asm.LdrStrImm9(load, sizeShift, rt, MemScratch, 0)
	}
	pageDelta := (int64(addr) &^ 0xfff) - (pc &^ 0xfff)
	if pageDelta >= -(1<<32) && pageDelta < (1<<32) {
		if err := g.asm.Adrp(MemScratch, pageDelta); err != nil {
			return err
		}
		low := int64(addr) & 0xfff
		if low&((1<<sizeShift)-1) == 0 {
			if err := g.asm.LdrStrImm12(load, sizeShift, rt, MemScratch, uint32(low)); err != nil {
				return err
			}
			return nil
		}
		if err := g.asm.AddImm(64, MemScratch, MemScratch, uint32(low), false); err != nil {
			return err
		}
		return g.asm.LdrStrImm9(load, sizeShift, rt, MemScratch, 0)
	}
	if err := g.materializeImm(MemScratch, uint64(addr)); err != nil {
		return err
	}
	return g.asm.LdrStrImm9(load, sizeShift, rt, MemScratch, 0)
}

// emitLoadStoreBaseOffset is the register-file counterpart of
// emitLoadStoreAbs: addr is already known to be BaseReg plus a small
// compile-time-constant offset (the common MachineState field access
// path), so it tries the cheap scaled/unscaled immediate forms first and
// only materializes the offset into MemScratch when neither fits.
func (g *Generator) emitLoadStoreBaseOffset(load bool, sizeBytes int, rt arm64.Reg, offset uintptr) error {
	sizeShift := arm64.SizeShift(sizeBytes)
	if offset&((1<<sizeShift)-1) == 0 && (offset>>sizeShift) <= 0xfff {
		return g.asm.LdrStrImm12(load, sizeShift, rt, BaseReg, uint32(offset))
	}
	if offset <= 255 {
		return g.asm.LdrStrImm9(load, sizeShift, rt, BaseReg, int32(offset))
	}
	if err := g.materializeImm(MemScratch, uint64(offset)); err != nil {
		return err
	}
	g.asm.AddReg(64, MemScratch, BaseReg, MemScratch)
	return g.asm.LdrStrImm9(load, sizeShift, rt, MemScratch, 0)
}
