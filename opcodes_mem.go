// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// computeIndexedAddress computes the absolute address base + index*scale
// into rd; the caller issues the load or store through rd afterwards.
func (g *Generator) computeIndexedAddress(base, index Param, scale uint64, rd, tmp arm64.Reg) error {
	baseLoc, err := classify(base, PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(baseLoc, 64, rd); err != nil {
		return err
	}
	if index.Kind == ParamImmediate {
		off := index.Imm * scale
		if imm, shift12, ok := fitsAddSubImm12(off); ok {
			return g.asm.AddSubImm(false, false, 64, rd, rd, imm, shift12)
		}
		if err := g.loadImmIntoReg(tmp, 64, off); err != nil {
			return err
		}
		g.asm.AddReg(64, rd, rd, tmp)
		return nil
	}
	idxLoc, err := classify(index, PTypeMR)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(idxLoc, 64, tmp); err != nil {
		return err
	}
	shift := uint32(0)
	switch scale {
	case 2:
		shift = 1
	case 4:
		shift = 2
	case 8:
		shift = 3
	}
	if shift != 0 {
		g.asm.ShiftedReg(64, tmp, arm64.XZR, tmp, arm64.LSL, shift)
	}
	g.asm.AddReg(64, rd, rd, tmp)
	return nil
}

func scaleParam(p Param) uint64 {
	if p.Kind == ParamImmediate {
		switch p.Imm {
		case 2, 4, 8:
			return p.Imm
		}
	}
	return 1
}

// opLoad lowers LOAD dst,base,index,scale: dst = *(base + index*scale),
// zero-extended to the instruction's width.
func (g *Generator) opLoad(inst *Instruction) error {
	return g.loadIndexed(inst, false)
}

// opLoads is LOAD's sign-extending counterpart.
func (g *Generator) opLoads(inst *Instruction) error {
	return g.loadIndexed(inst, true)
}

func (g *Generator) loadIndexed(inst *Instruction, signExtend bool) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	scale := scaleParam(inst.P(3))
	if err := g.computeIndexedAddress(inst.P(1), inst.P(2), scale, Scratch1, Scratch2); err != nil {
		return err
	}
	sizeShift := arm64.SizeShift(width / 8)
	if signExtend {
		if width == 64 {
			if err := g.asm.LdrsbImm9(64, Scratch1, Scratch1, 0); err != nil {
				return err
			}
		} else if err := g.asm.LdrswImm9(Scratch1, Scratch1, 0); err != nil {
			return err
		}
	} else {
		if err := g.asm.LdrStrImm9(true, sizeShift, Scratch1, Scratch1, 0); err != nil {
			return err
		}
	}
	g.poisonCarry()
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opStore lowers STORE base,index,scale,src: *(base + index*scale) = src.
func (g *Generator) opStore(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	srcLoc, err := classify(inst.P(3), PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(srcLoc, width, Temp1); err != nil {
		return err
	}
	scale := scaleParam(inst.P(2))
	if err := g.computeIndexedAddress(inst.P(0), inst.P(1), scale, Scratch1, Scratch2); err != nil {
		return err
	}
	sizeShift := arm64.SizeShift(width / 8)
	if err := g.asm.LdrStrImm9(false, sizeShift, Temp1, Scratch1, 0); err != nil {
		return err
	}
	g.poisonCarry()
	return g.resolveSkip(skip, inst.Condition)
}

// resolveSpace requires an immediate address-space selector and looks up
// its registered accessor bundle.
func (g *Generator) resolveSpace(p Param) (*MemoryAccessors, error) {
	if p.Kind != ParamImmediate {
		return nil, newGenError(ErrCatEncode, "memory opcode requires an immediate address space id")
	}
	acc, ok := g.spaces[int(p.Imm)]
	if !ok || acc == nil {
		return nil, newGenError(ErrCatUnsupported, "no memory accessors registered for address space %d", p.Imm)
	}
	return acc, nil
}

func (g *Generator) opRead(inst *Instruction) error  { return g.readOp(inst, false) }
func (g *Generator) opReadm(inst *Instruction) error { return g.readOp(inst, true) }

func (g *Generator) readOp(inst *Instruction, masked bool) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dstLoc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	addrLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	var acc *MemoryAccessors
	if masked {
		maskLoc, merr := classify(inst.P(2), PTypeMRI)
		if merr != nil {
			return merr
		}
		if err := g.moveLocationToReg(maskLoc, 64, Temp2); err != nil {
			return err
		}
		acc, err = g.resolveSpace(inst.P(3))
		if err != nil {
			return err
		}
	} else {
		acc, err = g.resolveSpace(inst.P(2))
		if err != nil {
			return err
		}
	}
	if err := g.moveLocationToReg(addrLoc, 64, Temp1); err != nil {
		return err
	}
	if err := g.emitMemAccess(acc, false, width/8, Temp1, Param1, Temp2, masked); err != nil {
		return err
	}
	g.asm.MovReg(width, Scratch1, Param1)
	if err := g.storeRegToLocation(dstLoc, width, Scratch1); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opWrite(inst *Instruction) error  { return g.writeOp(inst, false) }
func (g *Generator) opWritem(inst *Instruction) error { return g.writeOp(inst, true) }

func (g *Generator) writeOp(inst *Instruction, masked bool) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	addrLoc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	dataLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	// Data is staged in Temp3, not one of the Param registers: emitMemAccess
	// reuses Param1-4 internally (this pointer, object pointer) before it
	// ever copies the data argument into place, so a Param register would
	// get clobbered out from under it.
	if err := g.moveLocationToReg(dataLoc, width, Temp3); err != nil {
		return err
	}
	var acc *MemoryAccessors
	if masked {
		maskLoc, merr := classify(inst.P(2), PTypeMRI)
		if merr != nil {
			return merr
		}
		if err := g.moveLocationToReg(maskLoc, 64, Temp2); err != nil {
			return err
		}
		acc, err = g.resolveSpace(inst.P(3))
		if err != nil {
			return err
		}
	} else {
		acc, err = g.resolveSpace(inst.P(2))
		if err != nil {
			return err
		}
	}
	if err := g.moveLocationToReg(addrLoc, 64, Temp1); err != nil {
		return err
	}
	if err := g.emitMemAccess(acc, true, width/8, Temp1, Temp3, Temp2, masked); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFload/opFstore mirror LOAD/STORE for a float register operand, with
// scale implicitly matching the element size.
func (g *Generator) opFload(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dst := inst.P(0)
	if dst.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "fload requires a float register destination")
	}
	width := regWidth(inst.Size)
	scale := uint64(width / 8)
	if err := g.computeIndexedAddress(inst.P(1), inst.P(2), scale, Scratch1, Scratch2); err != nil {
		return err
	}
	if err := g.asm.FLdrStrImm9(true, arm64.SizeShift(width/8), FloatRegHost(dst.Index), Scratch1, 0); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opFstore(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	src := inst.P(3)
	if src.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "fstore requires a float register source")
	}
	width := regWidth(inst.Size)
	scale := uint64(width / 8)
	if err := g.computeIndexedAddress(inst.P(0), inst.P(1), scale, Scratch1, Scratch2); err != nil {
		return err
	}
	if err := g.asm.FLdrStrImm9(false, arm64.SizeShift(width/8), FloatRegHost(src.Index), Scratch1, 0); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opFread/opFwrite route a float value through the same address-space
// accessors as READ/WRITE, bridging through an integer register since
// MemoryAccessors calls move values in general-purpose argument registers.
func (g *Generator) opFread(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	dst := inst.P(0)
	if dst.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "fread requires a float register destination")
	}
	addrLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	acc, err := g.resolveSpace(inst.P(2))
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	if err := g.moveLocationToReg(addrLoc, 64, Temp1); err != nil {
		return err
	}
	if err := g.emitMemAccess(acc, false, width/8, Temp1, Param1, 0, false); err != nil {
		return err
	}
	g.asm.FmovIntToFloat(width, floatTypeForWidth(width), FloatRegHost(dst.Index), Param1)
	return g.resolveSkip(skip, inst.Condition)
}

func (g *Generator) opFwrite(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	addrLoc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	src := inst.P(1)
	if src.Kind != ParamFloatRegister {
		return newGenError(ErrCatEncode, "fwrite requires a float register source")
	}
	acc, err := g.resolveSpace(inst.P(2))
	if err != nil {
		return err
	}
	width := regWidth(inst.Size)
	// Temp3, not Param1: emitMemAccess reuses Param1-4 internally before it
	// copies the data argument into place.
	g.asm.FmovFloatToInt(width, Temp3, floatTypeForWidth(width), FloatRegHost(src.Index))
	if err := g.moveLocationToReg(addrLoc, 64, Temp1); err != nil {
		return err
	}
	if err := g.emitMemAccess(acc, true, width/8, Temp1, Temp3, 0, false); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}
