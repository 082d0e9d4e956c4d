package drcbearm64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGenericAccessors builds a MemoryAccessors bundle exercising only the
// generic resolved-function path (no specific fast path), with non-zero but
// never-called function pointers: these tests only check that lowering
// succeeds and picks the right field by width/read-write/masked, not that
// the call executes correctly (that needs a real AAPCS64-callable target,
// which no test in this package provides).
func fakeGenericAccessors(nativeBytes int) *MemoryAccessors {
	fn := ResolvedFunc{Object: 1, Function: 0x1000}
	return &MemoryAccessors{
		NativeBytes:      nativeBytes,
		ReadByte:         fn,
		ReadHalf:         fn,
		ReadWord:         fn,
		ReadQword:        fn,
		ReadByteMasked:   fn,
		ReadHalfMasked:   fn,
		ReadWordMasked:   fn,
		ReadQwordMasked:  fn,
		WriteByte:        fn,
		WriteHalf:        fn,
		WriteWord:        fn,
		WriteQword:       fn,
		WriteByteMasked:  fn,
		WriteHalfMasked:  fn,
		WriteWordMasked:  fn,
		WriteQwordMasked: fn,
	}
}

func TestGenerateWriteToRegisteredSpace(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	gen.SetMemoryAccessors(0, fakeGenericAccessors(8))

	instructions := []Instruction{
		{
			Op: OpWrite, Size: Size8,
			Param:     [4]Param{ImmParam(0x2000), IntRegParam(0), ImmParam(0)},
			NumParams: 3,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateWritemToRegisteredSpace(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	gen.SetMemoryAccessors(0, fakeGenericAccessors(4))

	instructions := []Instruction{
		{
			Op: OpWritem, Size: Size4,
			Param:     [4]Param{ImmParam(0x2000), IntRegParam(0), ImmParam(0xff), ImmParam(0)},
			NumParams: 4,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

func TestGenerateReadFromRegisteredSpace(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	gen.SetMemoryAccessors(0, fakeGenericAccessors(8))

	instructions := []Instruction{
		{
			Op: OpRead, Size: Size8,
			Param:     [4]Param{IntRegParam(0), ImmParam(0x2000), ImmParam(0)},
			NumParams: 3,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}

// TestGenerateMemOpUnregisteredSpaceFails checks resolveSpace's guard: a
// READ/WRITE naming a space id nothing registered accessors for must fail
// generation rather than emit a call through a nil/zero function pointer.
func TestGenerateMemOpUnregisteredSpaceFails(t *testing.T) {
	gen, _, _ := newTestGenerator(t)

	instructions := []Instruction{
		{
			Op: OpRead, Size: Size8,
			Param:     [4]Param{IntRegParam(0), ImmParam(0x2000), ImmParam(7)},
			NumParams: 3,
		},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatUnsupported, genErr.Category)
}
