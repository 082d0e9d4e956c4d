// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// Location is the resolved home of a classified parameter: either a host
// register directly, or a machine-state memory cell that must be loaded
// into a scratch register before use (a "cold" register or a MEMORY
// parameter proper).
type Location struct {
	IsRegister bool
	Reg        arm64.Reg
	MemOffset  uintptr // valid when !IsRegister && !IsImm: absolute address of the backing cell
	Imm        uint64  // valid when the parameter was IMMEDIATE
	IsImm      bool
}

// classify resolves a Param against a bitmask of ParamKind values the
// calling lowerer accepts (PTypeM/PTypeI/PTypeR/PTypeF combinations),
// returning an error if the parameter's actual kind isn't allowed.
func classify(p Param, allowed int) (Location, error) {
	mask := 1 << p.Kind
	if mask&allowed == 0 {
		return Location{}, newGenError(ErrCatEncode, "parameter kind %d not permitted here", p.Kind)
	}
	switch p.Kind {
	case ParamImmediate:
		return Location{IsImm: true, Imm: p.Imm}, nil
	case ParamMemory:
		return Location{IsRegister: false, MemOffset: p.Mem}, nil
	case ParamIntRegister:
		return Location{IsRegister: true, Reg: IntRegHost(p.Index)}, nil
	case ParamFloatRegister:
		return Location{IsRegister: true, Reg: FloatRegHost(p.Index)}, nil
	default:
		return Location{}, newGenError(ErrCatEncode, "unknown parameter kind %d", p.Kind)
	}
}

// regWidth returns the AArch64 operand width (32 or 64) for a UML Size.
func regWidth(s Size) int {
	if s == Size8 {
		return 64
	}
	return 32
}

// loadImmIntoReg materializes a constant narrowed to width bits into rd.
func (g *Generator) loadImmIntoReg(rd arm64.Reg, width int, val uint64) error {
	if width == 32 {
		val &= 0xffffffff
	}
	return g.materializeImm(rd, val)
}

// moveLocationToReg brings a classified Location's value into rd, loading
// from memory or materializing an immediate as needed; a register Location
// that already is rd is a no-op.
func (g *Generator) moveLocationToReg(loc Location, width int, rd arm64.Reg) error {
	switch {
	case loc.IsImm:
		return g.loadImmIntoReg(rd, width, loc.Imm)
	case loc.IsRegister:
		if loc.Reg == rd {
			return nil
		}
		g.asm.MovReg(width, rd, loc.Reg)
		return nil
	default:
		sz := 8
		if width == 32 {
			sz = 4
		}
		return g.emitLoadStoreAbs(true, sz, rd, loc.MemOffset)
	}
}

// storeRegToLocation is moveLocationToReg's inverse, used by lowerers that
// write their result back to a classified destination.
func (g *Generator) storeRegToLocation(loc Location, width int, rs arm64.Reg) error {
	if loc.IsRegister {
		if loc.Reg == rs {
			return nil
		}
		g.asm.MovReg(width, loc.Reg, rs)
		return nil
	}
	sz := 8
	if width == 32 {
		sz = 4
	}
	return g.emitLoadStoreAbs(false, sz, rs, loc.MemOffset)
}
