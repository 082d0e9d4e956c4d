// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// nativeMaskBits expands sizeBytes*8 ones, the "all bits set" byte mask an
// unmasked READ/WRITE passes to a masked accessor when no narrower mask
// applies.
func nativeMaskBits(sizeBytes int) uint64 {
	if sizeBytes >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(sizeBytes) * 8)) - 1
}

// emitSpecificDispatch resolves one "specific" fast-path call: it indexes
// the dispatch table with the address shifted right by HighBits (no mask is
// applied to the index), derives the this
// pointer (dispatch entry plus ThisDisp) into Param1, loads the function
// pointer (through a vtable slot when IsVirtual, otherwise a plain
// displacement off the entry) into FuncScratch, and masks the address into
// Param2. The caller still owns setting Param3/Param4 and issuing the call.
func (g *Generator) emitSpecificDispatch(acc *SpecificAccessor, addrReg arm64.Reg) error {
	if err := g.loadImmIntoReg(Scratch1, 64, uint64(acc.Dispatch)); err != nil {
		return err
	}
	if acc.HighBits > 0 {
		if err := g.loadImmIntoReg(Scratch2, 64, uint64(acc.HighBits)); err != nil {
			return err
		}
		g.asm.Lsrv(64, Scratch2, addrReg, Scratch2)
	} else {
		g.asm.MovReg(64, Scratch2, addrReg)
	}
	g.asm.ShiftedReg(64, Scratch2, arm64.XZR, Scratch2, arm64.LSL, 3) // table entries are pointer-sized
	g.asm.AddReg(64, Scratch1, Scratch1, Scratch2)                   // Scratch1 = &dispatch[index]
	if err := g.asm.LdrStrImm12(true, 3, Scratch1, Scratch1, 0); err != nil {
		return err // Scratch1 = dispatch[index], the resolved entry pointer
	}

	if acc.ThisDisp != 0 {
		if err := g.loadImmIntoReg(Scratch2, 64, uint64(acc.ThisDisp)); err != nil {
			return err
		}
		g.asm.AddReg(64, Param1, Scratch1, Scratch2)
	} else {
		g.asm.MovReg(64, Param1, Scratch1)
	}

	if acc.IsVirtual {
		if err := g.asm.LdrStrImm12(true, 3, FuncScratch, Param1, 0); err != nil {
			return err // FuncScratch = *this, the vtable pointer
		}
		if err := g.asm.LdrStrImm12(true, 3, FuncScratch, FuncScratch, uint32(acc.VtableOffset)); err != nil {
			return err
		}
	} else {
		if err := g.asm.LdrStrImm12(true, 3, FuncScratch, Scratch1, uint32(acc.FunctionDisp)); err != nil {
			return err
		}
	}

	if acc.AddressMask != ^uint64(0) {
		if n, immr, imms, ok := arm64.EncodeBitmaskImmediate(acc.AddressMask, 64); ok {
			g.asm.AndImm(64, Param2, addrReg, n, immr, imms)
		} else {
			if err := g.loadImmIntoReg(Scratch2, 64, acc.AddressMask); err != nil {
				return err
			}
			g.asm.AndReg(64, Param2, addrReg, Scratch2)
		}
	} else {
		g.asm.MovReg(64, Param2, addrReg)
	}
	return nil
}

// emitMemAccess lowers one READ/READM/WRITE/WRITEM opcode: it prefers the
// specific fast path when the access width matches the space's native
// width, and falls back to the generic resolved-member-function call
// otherwise. write is false for READ/READM. dataReg holds the value to
// write, or receives the loaded value on return for reads. maskReg is only
// consulted when hasMask is true (a READM/WRITEM mask already moved into a
// register by the caller); an unmasked access passes the all-ones mask of
// its own width on the fast path and has no mask argument at all on the
// generic path. Both dispatch paths stage Param1-4 internally before they
// place dataReg's value into the call's argument registers, so on a write
// dataReg must not itself be one of Param1-4 or its value would be
// clobbered before the call ever sees it; Temp3 is the caller's convention.
func (g *Generator) emitMemAccess(acc *MemoryAccessors, write bool, sizeBytes int, addrReg, dataReg, maskReg arm64.Reg, hasMask bool) error {
	if sizeBytes == acc.NativeBytes {
		specific, has := &acc.Read, acc.HasSpecificRead
		if write {
			specific, has = &acc.Write, acc.HasSpecificWrite
		}
		if has {
			if err := g.emitSpecificDispatch(specific, addrReg); err != nil {
				return err
			}
			if write {
				g.asm.MovReg(64, Param3, dataReg)
				if hasMask {
					g.asm.MovReg(64, Param4, maskReg)
				} else if err := g.loadImmIntoReg(Param4, 64, nativeMaskBits(sizeBytes)); err != nil {
					return err
				}
			} else if hasMask {
				g.asm.MovReg(64, Param3, maskReg)
			} else if err := g.loadImmIntoReg(Param3, 64, nativeMaskBits(sizeBytes)); err != nil {
				return err
			}
			g.flushCarry()
			g.emitIndirectCall(FuncScratch)
			g.poisonCarry()
			if !write {
				g.asm.MovReg(64, dataReg, Param1)
			}
			return nil
		}
	}

	fn, err := g.genericAccessor(acc, write, hasMask, sizeBytes)
	if err != nil {
		return err
	}
	if err := g.loadImmIntoReg(Param1, 64, uint64(fn.Object)); err != nil {
		return err
	}
	g.asm.MovReg(64, Param2, addrReg)
	if write {
		g.asm.MovReg(64, Param3, dataReg)
		if hasMask {
			g.asm.MovReg(64, Param4, maskReg)
		}
	} else if hasMask {
		g.asm.MovReg(64, Param3, maskReg)
	}
	g.flushCarry()
	if err := g.emitCall(fn.Function); err != nil {
		return err
	}
	g.poisonCarry()
	if !write {
		g.asm.MovReg(64, dataReg, Param1)
	}
	return nil
}

// genericAccessor picks the resolved member function for the generic
// fallback path, by access width and read/write/masked combination.
func (g *Generator) genericAccessor(acc *MemoryAccessors, write, masked bool, sizeBytes int) (ResolvedFunc, error) {
	pick := func(b, h, w, q ResolvedFunc) (ResolvedFunc, error) {
		switch sizeBytes {
		case 1:
			return b, nil
		case 2:
			return h, nil
		case 4:
			return w, nil
		case 8:
			return q, nil
		}
		return ResolvedFunc{}, newGenError(ErrCatEncode, "unsupported memory access width %d", sizeBytes)
	}
	switch {
	case write && masked:
		return pick(acc.WriteByteMasked, acc.WriteHalfMasked, acc.WriteWordMasked, acc.WriteQwordMasked)
	case write && !masked:
		return pick(acc.WriteByte, acc.WriteHalf, acc.WriteWord, acc.WriteQword)
	case !write && masked:
		return pick(acc.ReadByteMasked, acc.ReadHalfMasked, acc.ReadWordMasked, acc.ReadQwordMasked)
	default:
		return pick(acc.ReadByte, acc.ReadHalf, acc.ReadWord, acc.ReadQword)
	}
}

// narrowWriteShift computes the bit shift that aligns a narrow write's data
// and mask into their lane of the space's native-width word, per the
// endianness-aware narrow-write convention: little-endian lanes count up
// from the address's low bits, big-endian lanes count down.
func narrowWriteShift(nativeBytes, accessBytes int, addr uint64, bigEndian bool) uint {
	lanes := uint(nativeBytes / accessBytes)
	if lanes <= 1 {
		return 0
	}
	lane := uint(addr%uint64(nativeBytes)) / uint(accessBytes)
	if bigEndian {
		lane = lanes - 1 - lane
	}
	return lane * uint(accessBytes) * 8
}
