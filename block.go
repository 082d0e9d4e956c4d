// Completion: 100% - Module complete
package drcbearm64

// cacheLineBytes is the alignment granularity new blocks are padded to,
// matching the teacher's own cache-line-aligned code buffer convention.
const cacheLineBytes = 64

var opcodeTable = map[Opcode]func(*Generator, *Instruction) error{
	OpHandle:  (*Generator).opHandle,
	OpLabel:   (*Generator).opLabel,
	OpJmp:     (*Generator).opJmp,
	OpCallh:   (*Generator).opCallh,
	OpExh:     (*Generator).opExh,
	OpRet:     (*Generator).opRet,
	OpExit:    (*Generator).opExit,
	OpCallc:   (*Generator).opCallc,
	OpDebug:   (*Generator).opDebug,
	OpRecover: (*Generator).opRecover,
	OpHash:    (*Generator).opHash,
	OpHashjmp: (*Generator).opHashjmp,
	OpNop:     (*Generator).opNop,
	OpComment: (*Generator).opComment,
	OpMapvar:  (*Generator).opMapvar,
	OpBreak:   (*Generator).opBreak,

	OpSetfmod: (*Generator).opSetfmod,
	OpGetfmod: (*Generator).opGetfmod,
	OpGetexp:  (*Generator).opGetexp,
	OpGetflgs: (*Generator).opGetflgs,
	OpSetflgs: (*Generator).opSetflgs,
	OpSave:    (*Generator).opSave,
	OpRestore: (*Generator).opRestore,

	OpLoad:   (*Generator).opLoad,
	OpLoads:  (*Generator).opLoads,
	OpStore:  (*Generator).opStore,
	OpRead:   (*Generator).opRead,
	OpReadm:  (*Generator).opReadm,
	OpWrite:  (*Generator).opWrite,
	OpWritem: (*Generator).opWritem,
	OpFload:  (*Generator).opFload,
	OpFstore: (*Generator).opFstore,
	OpFread:  (*Generator).opFread,
	OpFwrite: (*Generator).opFwrite,

	OpMov:    (*Generator).opMov,
	OpSext:   (*Generator).opSext,
	OpRoland: (*Generator).opRoland,
	OpRolins: (*Generator).opRolins,

	OpAdd:    (*Generator).opAdd,
	OpAddc:   (*Generator).opAddc,
	OpSub:    (*Generator).opSub,
	OpSubb:   (*Generator).opSubb,
	OpCmp:    (*Generator).opCmp,
	OpMulu:   (*Generator).opMulu,
	OpMululw: (*Generator).opMululw,
	OpMuls:   (*Generator).opMuls,
	OpMulslw: (*Generator).opMulslw,
	OpDivu:   (*Generator).opDivu,
	OpDivs:   (*Generator).opDivs,

	OpAnd:   (*Generator).opAnd,
	OpTest:  (*Generator).opTest,
	OpOr:    (*Generator).opOr,
	OpXor:   (*Generator).opXor,
	OpLzcnt: (*Generator).opLzcnt,
	OpTzcnt: (*Generator).opTzcnt,
	OpBswap: (*Generator).opBswap,

	OpShl:  (*Generator).opShl,
	OpShr:  (*Generator).opShr,
	OpSar:  (*Generator).opSar,
	OpRol:  (*Generator).opRol,
	OpRolc: (*Generator).opRolc,
	OpRor:  (*Generator).opRor,
	OpRorc: (*Generator).opRorc,

	OpFmov:   (*Generator).opFmov,
	OpFadd:   (*Generator).opFadd,
	OpFsub:   (*Generator).opFsub,
	OpFmul:   (*Generator).opFmul,
	OpFdiv:   (*Generator).opFdiv,
	OpFneg:   (*Generator).opFneg,
	OpFabs:   (*Generator).opFabs,
	OpFsqrt:  (*Generator).opFsqrt,
	OpFrecip: (*Generator).opFrecip,
	OpFrsqrt: (*Generator).opFrsqrt,
	OpFcmp:   (*Generator).opFcmp,
	OpFcopyi: (*Generator).opFcopyi,
	OpIcopyf: (*Generator).opIcopyf,
	OpFtoint: (*Generator).opFtoint,
	OpFfrint: (*Generator).opFfrint,
	OpFfrflt: (*Generator).opFfrflt,
	OpFrnds:  (*Generator).opFrnds,
}

func (g *Generator) opNop(*Instruction) error { g.asm.Nop(); return nil }

func (g *Generator) opBreak(*Instruction) error { g.asm.Brk(0); return nil }

func (g *Generator) opComment(inst *Instruction) error {
	traceln("; %s", inst.Comment)
	return nil
}

// opMapvar records a map-variable value change. The reference generator
// doesn't maintain its own map-variable table (RECOVER resolves through the
// registered external resolver instead), so this is a trace-only no-op.
func (g *Generator) opMapvar(inst *Instruction) error {
	traceln("mapvar %d = %d", inst.P(0).Imm, inst.P(1).Imm)
	return nil
}

// Generate lowers a full UML instruction stream into a fresh block,
// committing it to the code cache and binding every HASH opcode's
// (mode, pc) pair once the block's final address is known. Returns the
// block's entry address.
func (g *Generator) Generate(instructions []Instruction) (uintptr, error) {
	g.Reset()
	g.cache.AlignTo(cacheLineBytes)
	g.asm.BaseAddr = g.cache.Addr(g.cache.NextOffset())

	if err := g.EmitEntry(); err != nil {
		return 0, err
	}
	entry := g.asm.BaseAddr

	for i := range instructions {
		inst := &instructions[i]
		fn, ok := opcodeTable[inst.Op]
		if !ok {
			return 0, newGenError(ErrCatUnsupported, "unsupported opcode %v", inst.Op)
		}
		if VerboseMode {
			traceln("%s", inst.Op)
		}
		if err := fn(g, inst); err != nil {
			return 0, err
		}
	}

	if err := g.EmitEndOfBlockAbort(); err != nil {
		return 0, err
	}

	if err := g.resolveFixups(); err != nil {
		return 0, err
	}

	padding := alignUp(len(g.asm.Code), cacheLineBytes) - len(g.asm.Code)
	for i := 0; i < padding; i += 4 {
		g.asm.Nop()
	}

	base, err := g.cache.Commit(g.asm.Code)
	if err != nil {
		return 0, newRetryError(ErrCatCodeCache, "%v", err)
	}
	if base != entry {
		return 0, newGenError(ErrCatCodeCache, "code cache bump pointer raced with block address prediction")
	}

	for _, hb := range g.pendingHashBinds {
		g.hash.Bind(hb.mode, hb.pc, entry+uintptr(hb.offset))
	}

	return entry, nil
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

func (g *Generator) resolveFixups() error {
	for _, f := range g.fixups {
		target, ok := g.labels[f.label]
		if !ok {
			return newGenError(ErrCatEncode, "unresolved label/handle reference %q", f.label)
		}
		switch f.kind {
		case fixupBranch:
			if err := g.asm.PatchBranch(f.offset, target); err != nil {
				return err
			}
		case fixupBCond:
			if err := g.asm.PatchBCond(f.offset, target); err != nil {
				return err
			}
		case fixupTb:
			if err := g.asm.PatchTb(f.offset, target); err != nil {
				return err
			}
		}
	}
	return nil
}
