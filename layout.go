// Completion: 100% - Module complete
package drcbearm64

// Byte offsets of MachineState fields from its own base address, mirroring
// the struct layout in state.go. Computed here rather than via
// unsafe.Offsetof so imm.go/loadstore.go callers that only need a constant
// don't have to carry an unsafe import.
const (
	offR     = 0
	offF     = offR + 8*8
	offFMod  = offF + 8*8
	offFlags = offFMod + 1
	offExp   = offFlags + 1 + 2 // Exp is uint32, naturally aligned to 4
)

func intRegOffset(i int) uintptr   { return uintptr(offR + i*8) }
func floatRegOffset(i int) uintptr { return uintptr(offF + i*8) }
