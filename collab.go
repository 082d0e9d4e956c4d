// Completion: 100% - Module complete
package drcbearm64

// The types in this file describe collaborators that live outside the code
// generator: the host address space dispatch tables (MemoryAccessors), the
// debugger hook (DebugHook) and the map-variable resolver
// (MapVariableResolver). They are plain structs of resolved object and
// function pointers, not Go interfaces; a host program fills them in and
// registers them on the Generator. The tests use a fake bundle
// (fakeGenericAccessors in opcodes_mem_test.go) whose functions are never
// called; cmd/drcbedump registers no accessors.

// SpecificAccessor describes one native-width fast path into an address
// space, mirroring address_space::specific_access_info::side from the
// original implementation.
type SpecificAccessor struct {
	Dispatch      uintptr // dispatch table base pointer
	ThisDisp      int64   // this-pointer displacement applied to the resolved entry
	LowBits       uint    // low bits of the address used as the table index
	HighBits      uint    // high bits of the address used as the table index
	AddressMask   uint64  // mask applied to the address before dispatch
	NativeBytes   int     // native access width of the space, in bytes
	IsVirtual     bool    // true if the call must go through a vtable slot
	VtableOffset  int64   // vtable slot offset when IsVirtual
	FunctionDisp  int64   // displacement from dispatch-table entry to function pointer
}

// MemoryAccessors bundles the resolved function pointers and specific-path
// descriptors for one address space, as consumed by READ/WRITE/READM/WRITEM.
type MemoryAccessors struct {
	NativeBytes int

	// Word is the 4-byte access; Qword the 8-byte access. There is no
	// separate "dword" size here (unlike MAME's 68k-family naming) since
	// this back end only ever sees UML's own four widths.
	ReadByte  ResolvedFunc
	ReadHalf  ResolvedFunc
	ReadWord  ResolvedFunc
	ReadQword ResolvedFunc

	ReadByteMasked  ResolvedFunc
	ReadHalfMasked  ResolvedFunc
	ReadWordMasked  ResolvedFunc
	ReadQwordMasked ResolvedFunc

	WriteByte  ResolvedFunc
	WriteHalf  ResolvedFunc
	WriteWord  ResolvedFunc
	WriteQword ResolvedFunc

	WriteByteMasked  ResolvedFunc
	WriteHalfMasked  ResolvedFunc
	WriteWordMasked  ResolvedFunc
	WriteQwordMasked ResolvedFunc

	Read  SpecificAccessor
	Write SpecificAccessor

	HasSpecificRead  bool
	HasSpecificWrite bool
}

// ResolvedFunc is a (object-pointer, function-pointer) pair, the Go stand-in
// for a resolved C++ member-function pointer: the object is passed as the
// first outbound argument, the function address is the call target.
type ResolvedFunc struct {
	Object   uintptr
	Function uintptr
}

func (r ResolvedFunc) IsValid() bool { return r.Function != 0 }

// DebugHook is the resolved member function the DEBUG opcode calls with the
// current guest PC.
type DebugHook struct {
	Object   uintptr
	Function uintptr
}

func (h *DebugHook) IsValid() bool { return h.Function != 0 }

// MapVariableResolver resolves (code pointer, map variable id) pairs to a
// 64-bit value, used by RECOVER.
type MapVariableResolver struct {
	Object   uintptr
	Function uintptr
}

func (r *MapVariableResolver) IsValid() bool { return r.Function != 0 }

// Handle is a named code-pointer cell: Addr is the code address bound to
// the handle, or 0 while it is unbound (IsBound reports which).
type Handle struct {
	Name string
	Addr uintptr
}

func (h *Handle) IsBound() bool { return h.Addr != 0 }
