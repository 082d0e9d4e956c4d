// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// emitCall picks BL when target is within the 26-bit signed word-offset
// range of a direct branch-with-link, and materializes the address into
// FuncScratch plus BLR otherwise. This is the only place a call site
// decides between the two forms; callers never need to know which was
// used.
func (g *Generator) emitCall(target uintptr) error {
	pc := int64(g.asm.PC())
	delta := int64(target) - pc
	if delta%4 == 0 {
		words := delta / 4
		if words >= -(1<<25) && words < (1<<25) {
			g.asm.Bl(int32(words))
			return nil
		}
	}
	if err := g.materializeImm(FuncScratch, uint64(target)); err != nil {
		return err
	}
	g.asm.Blr(FuncScratch)
	return nil
}

// emitTailBranch is emitCall's unconditional-branch counterpart, used by
// EXH/HASHJMP/JMP-to-absolute-target lowering paths that transfer control
// without expecting a return.
func (g *Generator) emitTailBranch(target uintptr) error {
	pc := int64(g.asm.PC())
	delta := int64(target) - pc
	if delta%4 == 0 {
		words := delta / 4
		if words >= -(1<<25) && words < (1<<25) {
			g.asm.B(int32(words))
			return nil
		}
	}
	if err := g.materializeImm(FuncScratch, uint64(target)); err != nil {
		return err
	}
	g.asm.Br(FuncScratch)
	return nil
}

// emitIndirectCall calls through a register that already holds the target
// address (a handle or hash-table lookup result), always BLR since the
// target isn't known until runtime.
func (g *Generator) emitIndirectCall(target arm64.Reg) { g.asm.Blr(target) }
