// Completion: 100% - Module complete
package drcbearm64

import (
	"fmt"

	"github.com/xyproto/drcbearm64/internal/arm64"
)

// Labels and handles share one namespace in the fixup resolver: both are
// just named positions a branch or call might need to reach before or
// after it has been bound. The two id-name helpers keep them from
// colliding when both happen to carry the same numeric id.
func labelName(id uint64) string  { return fmt.Sprintf("label$%d", id) }
func handleName(id uint64) string { return fmt.Sprintf("handle$%d", id) }

// opHandle binds a callable entry point at the current position. Callers
// (CALLH/EXH) that already hold the bound address skip straight to a
// direct call/branch; forward references go through the same fixup list
// LABEL/JMP use.
func (g *Generator) opHandle(inst *Instruction) error {
	name := handleName(inst.P(0).Imm)
	g.handles[name] = &Handle{Name: name, Addr: g.asm.PC()}
	g.labels[name] = g.asm.Offset()
	return nil
}

// opLabel binds a local branch target at the current position.
func (g *Generator) opLabel(inst *Instruction) error {
	g.labels[labelName(inst.P(0).Imm)] = g.asm.Offset()
	return nil
}

// opJmp emits an unconditional (optionally predicated) branch to a local
// label, resolving immediately if the label is already bound and deferring
// to a fixup otherwise.
func (g *Generator) opJmp(inst *Instruction) error {
	name := labelName(inst.P(0).Imm)
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	if target, ok := g.labels[name]; ok {
		here := g.asm.Offset()
		g.asm.B(0)
		if err := g.asm.PatchBranch(here, target); err != nil {
			return err
		}
	} else {
		pos := g.asm.B(0)
		g.fixups = append(g.fixups, fixup{kind: fixupBranch, offset: pos, label: name})
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opCallh calls a handle's bound code, expecting it to return (its own
// RET pops the frame CALLH's target pushed on entry).
func (g *Generator) opCallh(inst *Instruction) error {
	name := handleName(inst.P(0).Imm)
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	if h, ok := g.handles[name]; ok && h.IsBound() {
		if err := g.emitCall(h.Addr); err != nil {
			return err
		}
	} else {
		pos := g.asm.Bl(0)
		g.fixups = append(g.fixups, fixup{kind: fixupBranch, offset: pos, label: name})
	}
	g.poisonCarry()
	return g.resolveSkip(skip, inst.Condition)
}

// opExh transfers control to an exception handler's handle without
// expecting a return, the tail-call counterpart of CALLH.
func (g *Generator) opExh(inst *Instruction) error {
	name := handleName(inst.P(0).Imm)
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	if h, ok := g.handles[name]; ok && h.IsBound() {
		if err := g.emitTailBranch(h.Addr); err != nil {
			return err
		}
	} else {
		pos := g.asm.B(0)
		g.fixups = append(g.fixups, fixup{kind: fixupBranch, offset: pos, label: name})
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opRet pops the frame this subroutine's entry pushed and returns to
// whichever CALLH called it, without touching MachineState: register
// flushing only happens at the top-level EXIT.
func (g *Generator) opRet(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	if err := g.EmitReturn(); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opExit flushes MachineState and returns all the way out to the Go-side
// CallEntry trampoline, ending interpretation of this block.
func (g *Generator) opExit(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	p0 := inst.P(0)
	if p0.Kind == ParamImmediate {
		if err := g.loadImmIntoReg(Scratch1, regWidth(inst.Size), p0.Imm); err != nil {
			return err
		}
		if err := g.emitLoadStoreBaseOffset(false, 4, Scratch1, offExp); err != nil {
			return err
		}
	}
	if err := g.EmitExit(); err != nil {
		return err
	}
	return g.resolveSkip(skip, inst.Condition)
}

// opCallc calls an arbitrary host function pointer with a single
// parameter, the Go stand-in for CALLC's C-function-pointer invocation.
// Emulated flags are flushed first since the callee is free to clobber
// NZCV.
func (g *Generator) opCallc(inst *Instruction) error {
	skip, err := g.emitSkip(inst.Condition)
	if err != nil {
		return err
	}
	fn := inst.P(0)
	if fn.Kind != ParamImmediate {
		return newGenError(ErrCatEncode, "callc requires an immediate function pointer")
	}
	param := inst.P(1)
	loc, err := classify(param, PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(loc, regWidth(inst.Size), Param1); err != nil {
		return err
	}
	g.flushCarry()
	if err := g.emitCall(uintptr(fn.Imm)); err != nil {
		return err
	}
	g.poisonCarry()
	return g.resolveSkip(skip, inst.Condition)
}

// opDebug invokes the registered debug hook with the current guest PC, a
// no-op if no hook was registered (matching "no debugger attached").
func (g *Generator) opDebug(inst *Instruction) error {
	if g.debug == nil || !g.debug.IsValid() {
		return nil
	}
	pcParam := inst.P(0)
	loc, err := classify(pcParam, PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(loc, regWidth(inst.Size), Param2); err != nil {
		return err
	}
	if err := g.loadImmIntoReg(Param1, 64, uint64(g.debug.Object)); err != nil {
		return err
	}
	g.flushCarry()
	if err := g.emitCall(g.debug.Function); err != nil {
		return err
	}
	g.poisonCarry()
	return nil
}

// opRecover resolves a map variable id to its current value via the
// registered MapVariableResolver, storing the result in dst.
func (g *Generator) opRecover(inst *Instruction) error {
	dst := inst.P(0)
	dstLoc, err := classify(dst, PTypeR)
	if err != nil {
		return err
	}
	if g.mapvar == nil || !g.mapvar.IsValid() {
		return newGenError(ErrCatUnsupported, "recover requires a registered map-variable resolver")
	}
	mvar := inst.P(1)
	if mvar.Kind != ParamImmediate {
		return newGenError(ErrCatEncode, "recover requires an immediate map variable id")
	}
	if err := g.loadImmIntoReg(Param1, 64, uint64(g.mapvar.Object)); err != nil {
		return err
	}
	if err := g.loadImmIntoReg(Param2, 64, uint64(g.asm.PC())); err != nil {
		return err
	}
	if err := g.loadImmIntoReg(Param3, 64, mvar.Imm); err != nil {
		return err
	}
	g.flushCarry()
	if err := g.emitCall(g.mapvar.Function); err != nil {
		return err
	}
	g.poisonCarry()
	g.asm.MovReg(64, dstLoc.Reg, Param1)
	return nil
}

// opHash records this position as the hash-table entry point for
// (mode, pc); the actual Bind call happens once the block's final address
// is known at the end of Generate.
func (g *Generator) opHash(inst *Instruction) error {
	mode := inst.P(0)
	pc := inst.P(1)
	if mode.Kind != ParamImmediate || pc.Kind != ParamImmediate {
		return newGenError(ErrCatEncode, "hash requires immediate mode and pc")
	}
	g.pendingHashBinds = append(g.pendingHashBinds, hashBind{mode: int(mode.Imm), pc: uint32(pc.Imm), offset: g.asm.Offset()})
	return nil
}

// opHashjmp looks up (mode, pc) in the hash table via the registered native
// lookup callback and jumps to the result, falling back to the handle named
// by the third parameter (typically the recompiler's "compile on demand"
// stub) when nothing is bound yet.
func (g *Generator) opHashjmp(inst *Instruction) error {
	if g.hashLookup == nil || !g.hashLookup.IsValid() {
		return newGenError(ErrCatUnsupported, "hashjmp requires a registered hash lookup callback")
	}
	modeLoc, err := classify(inst.P(0), PTypeMRI)
	if err != nil {
		return err
	}
	pcLoc, err := classify(inst.P(1), PTypeMRI)
	if err != nil {
		return err
	}
	if err := g.moveLocationToReg(modeLoc, 64, Param1); err != nil {
		return err
	}
	if err := g.moveLocationToReg(pcLoc, 64, Param2); err != nil {
		return err
	}
	g.flushCarry()
	if err := g.emitCall(g.hashLookup.Function); err != nil {
		return err
	}
	g.poisonCarry()
	// result in x0 (aliased here to Param1): zero means "no code". A
	// non-zero result is a tail jump into the found block, never a call --
	// HASHJMP transfers control permanently, it doesn't return here.
	g.asm.CmpImm(64, Param1, 0, false)
	skip := g.asm.BCond(arm64.EQ, 0)
	g.asm.Br(Param1)
	target := g.asm.Offset()
	if err := g.asm.PatchBCond(skip, target); err != nil {
		return err
	}
	name := handleName(inst.P(2).Imm)
	if h, ok := g.handles[name]; ok && h.IsBound() {
		return g.emitTailBranch(h.Addr)
	}
	pos := g.asm.B(0)
	g.fixups = append(g.fixups, fixup{kind: fixupBranch, offset: pos, label: name})
	return nil
}
