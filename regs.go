// Completion: 100% - Module complete
package drcbearm64

import "github.com/xyproto/drcbearm64/internal/arm64"

// Host register assignment, ported verbatim from the original's register
// table (drcbearm64.cpp:112-140). x27/x28 are reserved infrastructure; the
// UML register files map onto the callee-saved ranges so they survive
// across CALLH/CALLC without explicit save/restore; the temp/scratch tiers
// exist so helpers have somewhere to work without clobbering a live UML
// register.
const (
	BaseReg  = arm64.X27 // machine-state base pointer
	FlagsReg = arm64.X28 // persisted emulated C/U flags

	Temp1 = arm64.X9
	Temp2 = arm64.X10
	Temp3 = arm64.X11

	Scratch1 = arm64.X12
	Scratch2 = arm64.X13

	MemScratch  = arm64.X14
	FuncScratch = arm64.X15

	TempF1 = arm64.V16
	TempF2 = arm64.V17
	TempF3 = arm64.V18

	Param1 = arm64.X0
	Param2 = arm64.X1
	Param3 = arm64.X2
	Param4 = arm64.X3
)

// intRegs/floatRegs map UML register indices 0..7 to their host register.
var intRegs = [8]arm64.Reg{arm64.X19, arm64.X20, arm64.X21, arm64.X22, arm64.X23, arm64.X24, arm64.X25, arm64.X26}
var floatRegs = [8]arm64.Reg{arm64.V8, arm64.V9, arm64.V10, arm64.V11, arm64.V12, arm64.V13, arm64.V14, arm64.V15}

func IntRegHost(i int) arm64.Reg   { return intRegs[i] }
func FloatRegHost(i int) arm64.Reg { return floatRegs[i] }

// floatTypeForWidth picks the FP instruction type field for a 32- or
// 64-bit operand width, the same Size4/Size8 split every integer opcode
// already uses.
func floatTypeForWidth(width int) arm64.FpType {
	if width == 64 {
		return arm64.FPDouble
	}
	return arm64.FPSingle
}
