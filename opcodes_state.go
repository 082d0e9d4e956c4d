// Completion: 100% - Module complete
package drcbearm64

// opSetfmod writes the function-mode byte to MachineState.FMod. FMod isn't
// cached in a host register between opcodes (nothing reads it often enough
// to be worth a dedicated register), so every access round-trips through
// memory.
func (g *Generator) opSetfmod(inst *Instruction) error {
	loc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(loc, 32, Scratch1); err != nil {
		return err
	}
	return g.emitLoadStoreBaseOffset(false, 1, Scratch1, offFMod)
}

func (g *Generator) opGetfmod(inst *Instruction) error {
	loc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	if err := g.emitLoadStoreBaseOffset(true, 1, Scratch1, offFMod); err != nil {
		return err
	}
	return g.storeRegToLocation(loc, regWidth(inst.Size), Scratch1)
}

func (g *Generator) opGetexp(inst *Instruction) error {
	loc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	if err := g.emitLoadStoreBaseOffset(true, 4, Scratch1, offExp); err != nil {
		return err
	}
	return g.storeRegToLocation(loc, regWidth(inst.Size), Scratch1)
}

func (g *Generator) opGetflgs(inst *Instruction) error {
	loc, err := classify(inst.P(0), PTypeMR)
	if err != nil {
		return err
	}
	g.packFlags(Temp1)
	return g.storeRegToLocation(loc, regWidth(inst.Size), Temp1)
}

func (g *Generator) opSetflgs(inst *Instruction) error {
	loc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(loc, 64, Temp1); err != nil {
		return err
	}
	g.unpackFlags(Temp1)
	return nil
}

// opSave copies the full register file, fmod, packed flags and exp out to
// an externally-owned MachineState-shaped buffer -- a debugger snapshot or
// a save state, distinct from the live state BaseReg already addresses.
func (g *Generator) opSave(inst *Instruction) error {
	dst := inst.P(0)
	if dst.Kind != ParamMemory {
		return newGenError(ErrCatEncode, "save requires a memory destination")
	}
	base := dst.Mem
	for i := 0; i < 8; i++ {
		if err := g.emitLoadStoreAbs(false, 8, IntRegHost(i), base+intRegOffset(i)); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := g.emitFloatLoadStoreAbs(false, 64, FloatRegHost(i), base+floatRegOffset(i)); err != nil {
			return err
		}
	}
	if err := g.emitLoadStoreBaseOffset(true, 1, Scratch1, offFMod); err != nil {
		return err
	}
	if err := g.emitLoadStoreAbs(false, 1, Scratch1, base+offFMod); err != nil {
		return err
	}
	g.packFlags(Temp1)
	if err := g.emitLoadStoreAbs(false, 1, Temp1, base+offFlags); err != nil {
		return err
	}
	if err := g.emitLoadStoreBaseOffset(true, 4, Scratch1, offExp); err != nil {
		return err
	}
	return g.emitLoadStoreAbs(false, 4, Scratch1, base+offExp)
}

// opRestore is opSave's inverse.
func (g *Generator) opRestore(inst *Instruction) error {
	src := inst.P(0)
	if src.Kind != ParamMemory {
		return newGenError(ErrCatEncode, "restore requires a memory source")
	}
	base := src.Mem
	for i := 0; i < 8; i++ {
		if err := g.emitLoadStoreAbs(true, 8, IntRegHost(i), base+intRegOffset(i)); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := g.emitFloatLoadStoreAbs(true, 64, FloatRegHost(i), base+floatRegOffset(i)); err != nil {
			return err
		}
	}
	if err := g.emitLoadStoreAbs(true, 1, Scratch1, base+offFMod); err != nil {
		return err
	}
	if err := g.emitLoadStoreBaseOffset(false, 1, Scratch1, offFMod); err != nil {
		return err
	}
	if err := g.emitLoadStoreAbs(true, 1, Temp1, base+offFlags); err != nil {
		return err
	}
	g.unpackFlags(Temp1)
	if err := g.emitLoadStoreAbs(true, 4, Scratch1, base+offExp); err != nil {
		return err
	}
	return g.emitLoadStoreBaseOffset(false, 4, Scratch1, offExp)
}
