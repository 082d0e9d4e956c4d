package drcbearm64

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestGenerateSetGetFmod(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpSetfmod, Size: Size4, Param: [4]Param{ImmParam(1)}, NumParams: 1},
		{Op: OpGetfmod, Size: Size4, Param: [4]Param{IntRegParam(0)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateGetSetFlags(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpGetflgs, Size: Size4, Param: [4]Param{IntRegParam(0)}, NumParams: 1},
		{Op: OpSetflgs, Size: Size4, Param: [4]Param{IntRegParam(0)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateSaveRestoreRequireMemoryOperand(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpSave, Param: [4]Param{IntRegParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)

	gen2, _, _ := newTestGenerator(t)
	instructions2 := []Instruction{
		{Op: OpRestore, Param: [4]Param{IntRegParam(0)}, NumParams: 1},
	}
	_, err = gen2.Generate(instructions2)
	require.Error(t, err)
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

func TestGenerateSaveRestoreRoundTripShape(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	var snapshot MachineState
	snapAddr := uintptr(unsafe.Pointer(&snapshot))

	instructions := []Instruction{
		{Op: OpSave, Param: [4]Param{MemParam(snapAddr)}, NumParams: 1},
		{Op: OpRestore, Param: [4]Param{MemParam(snapAddr)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}
