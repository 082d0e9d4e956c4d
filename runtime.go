// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// EmitEntry writes the block's entry trampoline: push fp/lr, move the
// MachineState pointer from x0 into BaseReg, load the eight UML integer and
// float registers and the persisted flags byte into their host homes. Every
// CALLH/EXH callee and every compiled block shares this same shape, so a
// hash-table lookup that lands on the wrong mode still executes something
// with a sane prologue.
func (g *Generator) EmitEntry() error {
	if err := g.asm.StpPre(arm64.FP, arm64.LR, arm64.SP, -16); err != nil {
		return err
	}
	g.asm.MovReg(64, BaseReg, arm64.X0)
	for i := 0; i < 8; i++ {
		if err := g.emitLoadStoreBaseOffset(true, 8, IntRegHost(i), intRegOffset(i)); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := g.asm.FLdrStrImm12(true, 3, FloatRegHost(i), BaseReg, uint32(floatRegOffset(i))); err != nil {
			return err
		}
	}
	if err := g.emitLoadStoreBaseOffset(true, 1, FlagsReg, offFlags); err != nil {
		return err
	}
	g.poisonCarry()
	return nil
}

// EmitExit writes the inverse of EmitEntry: flush the eight UML integer and
// float registers and the flags byte back to MachineState, then pop fp/lr
// and return to the caller (the Go-side CallEntry trampoline, or another
// generated block's CALLH).
func (g *Generator) EmitExit() error {
	for i := 0; i < 8; i++ {
		if err := g.emitLoadStoreBaseOffset(false, 8, IntRegHost(i), intRegOffset(i)); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := g.asm.FLdrStrImm12(false, 3, FloatRegHost(i), BaseReg, uint32(floatRegOffset(i))); err != nil {
			return err
		}
	}
	if err := g.emitLoadStoreBaseOffset(false, 1, FlagsReg, offFlags); err != nil {
		return err
	}
	if err := g.asm.LdpPost(arm64.FP, arm64.LR, arm64.SP, 16); err != nil {
		return err
	}
	g.asm.Ret(arm64.LR)
	return nil
}

// EmitReturn pops the frame pushed by this subroutine's own entry and
// returns to its caller (another generated block's CALLH, or the Go
// trampoline if this is a top-level RET used as an EXIT alias), without
// touching MachineState.
func (g *Generator) EmitReturn() error {
	if err := g.asm.LdpPost(arm64.FP, arm64.LR, arm64.SP, 16); err != nil {
		return err
	}
	g.asm.Ret(arm64.LR)
	return nil
}

// EmitNoCodeStub writes the landing pad HASHJMP/CALLH fall through to when
// the hash table has no compiled block for the requested (mode, pc): it
// restores the caller's frame and returns immediately, leaving the
// MachineState's Exp field holding the pc the runtime should resume
// interpreting from (the caller is responsible for having stored it there
// before branching here).
func (g *Generator) EmitNoCodeStub() error {
	return g.EmitExit()
}

// EmitEndOfBlockAbort writes the trailing branch every generated block ends
// with as a safety net: control should never fall off the end of a UML
// block (the front end always terminates it with an unconditional
// JMP/EXH/RET), so reaching here indicates a malformed instruction stream.
// It stores a sentinel into Exp and jumps to the same path EmitNoCodeStub
// uses, returning control to the caller rather than crashing.
func (g *Generator) EmitEndOfBlockAbort() error {
	g.asm.Movz(32, Scratch1, 0xffff, 0)
	if err := g.emitLoadStoreBaseOffset(false, 4, Scratch1, offExp); err != nil {
		return err
	}
	return g.EmitExit()
}
