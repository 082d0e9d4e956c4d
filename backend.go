// Completion: 100% - Module complete
package drcbearm64

import (
	"unsafe"

	"github.com/xyproto/drcbearm64/codecache"
	"github.com/xyproto/drcbearm64/hashtable"
	"github.com/xyproto/drcbearm64/internal/arm64"
)

// Generator is the single per-recompiler-instance code generation context.
// It is not safe for concurrent use; the concurrency model (section 5 of
// the design) requires exactly one Generate call in flight at a time, which
// is also what lets emitCall/materializeImm predict a block's final address
// before it's copied into the cache: BasePtr is fixed at Reset time and the
// cache's bump pointer only advances between Generate calls, never during
// one.
type Generator struct {
	asm   *arm64.Assembler
	cache *codecache.Cache
	hash  *hashtable.Table

	basePtr uintptr // MachineState.R[0] address, fixed for the process lifetime
	context uintptr // opaque host pointer; stored only, no generated call passes it on

	spaces map[int]*MemoryAccessors
	debug  *DebugHook
	mapvar *MapVariableResolver

	handles map[string]*Handle
	labels  map[string]int
	fixups  []fixup

	hashLookup       *ResolvedFunc
	pendingHashBinds []hashBind

	carry carryState
}

// hashBind is a deferred HASH opcode binding: the (mode, pc) pair is known
// at lowering time, but the absolute address it should resolve to is only
// known once the block has been committed into the code cache.
type hashBind struct {
	mode   int
	pc     uint32
	offset int
}

// SetHashLookup registers the native callback HASHJMP calls through:
// func(mode, pc uintptr) uintptr, returning a bound code address or 0.
func (g *Generator) SetHashLookup(fn ResolvedFunc) { g.hashLookup = &fn }

type fixupKind int

const (
	fixupBranch fixupKind = iota
	fixupBCond
	fixupTb
)

type fixup struct {
	kind   fixupKind
	offset int
	label  string
}

// NewGenerator constructs a Generator bound to a fixed MachineState base
// address and code cache. context is kept on the Generator; DEBUG, RECOVER
// and CALLC do not pass it to their callees.
func NewGenerator(basePtr uintptr, context uintptr, cache *codecache.Cache, hash *hashtable.Table) *Generator {
	return &Generator{
		basePtr: basePtr,
		context: context,
		cache:   cache,
		hash:    hash,
		spaces:  make(map[int]*MemoryAccessors),
		handles: make(map[string]*Handle),
	}
}

// SetMemoryAccessors registers the accessor bundle for an address space
// index, consulted by LOAD/STORE/READ/WRITE lowering.
func (g *Generator) SetMemoryAccessors(space int, accessors *MemoryAccessors) {
	g.spaces[space] = accessors
}

// SetDebugHook registers the callee DEBUG opcodes call with the current PC.
func (g *Generator) SetDebugHook(hook *DebugHook) { g.debug = hook }

// SetMapVariableResolver registers the callee RECOVER calls to resolve a
// map variable at a given code address.
func (g *Generator) SetMapVariableResolver(r *MapVariableResolver) { g.mapvar = r }

// Reset clears all per-block state (labels, fixups, pending HASH binds,
// carry cache) without discarding registered handles, memory accessors or
// hooks, mirroring the external reset() contract: it must be safe to call
// before every fresh Generate.
func (g *Generator) Reset() {
	g.asm = arm64.New()
	g.labels = make(map[string]int)
	g.fixups = nil
	g.pendingHashBinds = nil
	g.carry = carryPoison
}

// Handle looks up (creating if necessary) the mutable code pointer cell
// named name, the Go stand-in for drcuml_codehandle*.
func (g *Generator) Handle(name string) *Handle {
	h, ok := g.handles[name]
	if !ok {
		h = &Handle{Name: name}
		g.handles[name] = h
	}
	return h
}

// HashExists reports whether a block has already been compiled for
// (mode, pc), part of the external interface a UML runtime consults before
// deciding to call Generate.
func (g *Generator) HashExists(mode int, pc uint32) bool {
	return g.hash.Exists(mode, pc)
}

// GetInfo reports static back end capabilities the UML runtime queries: the
// two integer/float sizes this back end supports (4 and 8 bytes both), and
// the register counts committed above (8 integer, 8 float).
type BackendInfo struct {
	IntRegisters   int
	FloatRegisters int
	Sizes          []Size
}

func (g *Generator) GetInfo() BackendInfo {
	return BackendInfo{IntRegisters: 8, FloatRegisters: 8, Sizes: []Size{Size4, Size8}}
}

// Execute finalizes the cache as executable and calls the block at entry
// through arm64.CallEntry with state as its MachineState pointer. It returns
// only Finalize's error; results are read back from state after the block
// exits. This is the reference host trampoline used by
// integration tests and cmd/drcbedump; a real front end will have its own
// entry stub with the same shape.
func Execute(cache *codecache.Cache, entry uintptr, state *MachineState) error {
	if err := cache.Finalize(); err != nil {
		return err
	}
	arm64.CallEntry(entry, uintptr(unsafe.Pointer(state)))
	return nil
}
