// Completion: 100% - Module complete
package drcbearm64

// MachineState is the externally-owned block of memory the generated code
// addresses through the base register (x27). Field order matches the C
// struct drcuml_machine_state byte for byte: r[8], f[8], fmod, flags, exp.
type MachineState struct {
	R     [8]uint64
	F     [8]uint64
	FMod  uint8
	Flags uint8
	Exp   uint32
}

// NearCache declares a small scratch area holding a 32-bit emulated flags
// word. The generator does not reference it: across calls into external
// functions the persisted C/U bits stay in FlagsReg (x28, callee-saved),
// and N/Z/V are not preserved.
type NearCache struct {
	EmulatedFlags uint32
}
