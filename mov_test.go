package drcbearm64

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestMovParamParamQuirkLeavesUpperHalfUntouched exercises the documented,
// tolerated mov_param_param quirk: a 4-byte MOV between two memory cells
// must not disturb the upper 32 bits of a destination wider than the move.
func TestMovParamParamQuirkLeavesUpperHalfUntouched(t *testing.T) {
	gen, cache, state := newTestGenerator(t)

	var src uint32 = 0xAABBCCDD
	var dst uint64 = 0x1122334455667788
	srcAddr := uintptr(unsafe.Pointer(&src))
	dstAddr := uintptr(unsafe.Pointer(&dst))

	instructions := []Instruction{
		{
			Op: OpMov, Size: Size4,
			Param:     [4]Param{MemParam(dstAddr), MemParam(srcAddr)},
			NumParams: 2,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(0x11223344AABBCCDD), dst,
		"lower 32 bits replaced by the move, upper 32 bits of the wider cell left exactly as they were")
}

func TestGenerateRoland(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpRoland, Size: Size4,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(4), ImmParam(0xff)},
			NumParams: 4,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateRolandRejectsNonImmediateShift(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpRoland, Size: Size4,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), IntRegParam(2), ImmParam(0xff)},
			NumParams: 4,
		},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

func TestGenerateRolins(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpRolins, Size: Size4,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(4), ImmParam(0xff)},
			NumParams: 4,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateSext(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpSext, Size: Size8,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(1)},
			NumParams: 3,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}
