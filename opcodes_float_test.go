package drcbearm64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFcvtRoundModeMapsAllUmlModes(t *testing.T) {
	cases := []uint64{umlRoundTrunc, umlRoundRound, umlRoundCeil, umlRoundFloor}
	for _, m := range cases {
		_, ok := fcvtRoundMode(m)
		require.True(t, ok, "mode %d must map to a native rounding mode", m)
	}
	_, ok := fcvtRoundMode(99)
	require.False(t, ok, "an unrecognized rounding mode must be rejected, not silently defaulted")
}

func TestGenerateFloatArithmetic(t *testing.T) {
	ops := []Opcode{OpFadd, OpFsub, OpFmul, OpFdiv}
	for _, op := range ops {
		gen, _, _ := newTestGenerator(t)
		instructions := []Instruction{
			{
				Op: op, Size: Size8,
				Param:     [4]Param{FloatRegParam(0), FloatRegParam(1), FloatRegParam(2)},
				NumParams: 3,
			},
			{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
		}
		_, err := gen.Generate(instructions)
		require.NoError(t, err, "opcode %v", op)
	}
}

func TestGenerateFrecipAndFrsqrtGroundOnDivision(t *testing.T) {
	for _, op := range []Opcode{OpFrecip, OpFrsqrt} {
		gen, _, _ := newTestGenerator(t)
		instructions := []Instruction{
			{
				Op: op, Size: Size4,
				Param:     [4]Param{FloatRegParam(0), FloatRegParam(1)},
				NumParams: 2,
			},
			{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
		}
		_, err := gen.Generate(instructions)
		require.NoError(t, err, "opcode %v", op)
	}
}

func TestGenerateFtointRejectsUnsupportedRoundMode(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpFtoint, Size: Size4,
			Param:     [4]Param{IntRegParam(0), FloatRegParam(1), ImmParam(4), ImmParam(77)},
			NumParams: 4,
		},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

func TestGenerateFtointAcceptsEveryRoundMode(t *testing.T) {
	for _, mode := range []uint64{umlRoundTrunc, umlRoundRound, umlRoundCeil, umlRoundFloor} {
		gen, _, _ := newTestGenerator(t)
		instructions := []Instruction{
			{
				Op: OpFtoint, Size: Size4,
				Param:     [4]Param{IntRegParam(0), FloatRegParam(1), ImmParam(4), ImmParam(mode)},
				NumParams: 4,
			},
			{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
		}
		_, err := gen.Generate(instructions)
		require.NoError(t, err, "round mode %d", mode)
	}
}

func TestGenerateFcopyiRequiresFloatDestination(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpFcopyi, Size: Size4, Param: [4]Param{IntRegParam(0), IntRegParam(1)}, NumParams: 2},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

func TestGenerateIcopyfRequiresFloatSource(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpIcopyf, Size: Size4, Param: [4]Param{IntRegParam(0), IntRegParam(1)}, NumParams: 2},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

// TestGenerateFcmpPersistsOnlyCarryAndUnordered checks that FCMP's lowering
// transitions the carry cache to logical, since it flushes C and the
// unordered bit into FlagsReg.
func TestGenerateFcmpPersistsOnlyCarryAndUnordered(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpFcmp, Size: Size8, Param: [4]Param{FloatRegParam(0), FloatRegParam(1)}, NumParams: 2},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
	require.Equal(t, carryLogical, gen.carry)
}

func TestGenerateFrndsRoundTrip(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpFrnds, Size: Size8, Param: [4]Param{FloatRegParam(0), FloatRegParam(1)}, NumParams: 2},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.NoError(t, err)
}
