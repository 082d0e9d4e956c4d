package drcbearm64

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xyproto/drcbearm64/internal/arm64"
)

func newTestGeneratorForAsm(t *testing.T) *Generator {
	t.Helper()
	g := &Generator{}
	g.Reset()
	return g
}

// TestLoadCarrySkipsReloadWhenCanonical checks the one-way short-circuit
// loadCarry relies on: once markCanonical has recorded that NZCV.C already
// holds the right value, a second loadCarry call must not emit the
// MRS/BFI/MSR reload sequence again.
func TestLoadCarrySkipsReloadWhenCanonical(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	require.Equal(t, carryPoison, g.carry)

	g.markCanonical()
	require.Equal(t, carryCanonical, g.carry)

	before := g.asm.Offset()
	g.loadCarry(false)
	require.Equal(t, before, g.asm.Offset(), "loadCarry must be a no-op once the cache is canonical")
}

// TestLoadCarryInvertedNeverSkips checks that the canonical short-circuit
// only ever applies to a non-inverted reload: canonical NZCV.C is only ever
// left behind by the add family, so an SBC/SUBB-bound reload (inverted)
// must always emit the reconstruction sequence even when canonical.
func TestLoadCarryInvertedNeverSkips(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	g.markCanonical()

	before := g.asm.Offset()
	g.loadCarry(true)
	require.Greater(t, g.asm.Offset(), before, "an inverted reload must not reuse the canonical shortcut")
	require.Equal(t, carryLogical, g.carry)
}

// TestLoadCarryReloadsWhenPoisoned checks the opposite path: a poisoned
// cache must actually emit the reload sequence and transition to canonical.
func TestLoadCarryReloadsWhenPoisoned(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	g.poisonCarry()

	before := g.asm.Offset()
	g.loadCarry(false)
	require.Greater(t, g.asm.Offset(), before, "loadCarry must emit code to reconstruct NZCV.C from FlagsReg")
	require.Equal(t, carryCanonical, g.carry)
}

// TestStoreCarryMarksLogical checks storeCarry's state transition: after
// flushing NZCV.C into FlagsReg, the cache is logical (FlagsReg is
// authoritative, NZCV is not), never canonical or poisoned.
func TestStoreCarryMarksLogical(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	for _, inverted := range []bool{false, true} {
		g.markCanonical()
		g.storeCarry(inverted)
		require.Equal(t, carryLogical, g.carry)
	}
}

// TestPoisonCarryAlwaysResets checks poisonCarry forces the poisoned state
// regardless of the prior state, used after any lowering (a plain MOV, a
// CALLC/CALLH boundary) that clobbers flags without updating FlagsReg.
func TestPoisonCarryAlwaysResets(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	for _, start := range []carryState{carryPoison, carryCanonical, carryLogical} {
		g.carry = start
		g.poisonCarry()
		require.Equal(t, carryPoison, g.carry)
	}
}

// TestStoreUnorderedTargetsFlagBitFour checks that storeUnordered always
// writes into bit 4 of FlagsReg, the convention FCMP/U-condition lowering
// depends on (the only flag bit with no native NZCV representation).
func TestStoreUnorderedTargetsFlagBitFour(t *testing.T) {
	g := newTestGeneratorForAsm(t)
	before := g.asm.Offset()
	g.storeUnordered(arm64.X9)
	require.Greater(t, g.asm.Offset(), before)
	want := arm64.New()
	want.Bfi(64, FlagsReg, arm64.X9, 4, 1)
	require.Equal(t, want.Code, g.asm.Code[before:])
}

// getflgsAndExit appends a GETFLGS of the live flags into I7 followed by an
// EXIT, so a test can observe the packed UML flags byte via state.R[7] after
// Execute returns.
func getflgsAndExit(instructions []Instruction) []Instruction {
	return append(instructions,
		Instruction{Op: OpGetflgs, Size: Size8, Param: [4]Param{IntRegParam(7)}, NumParams: 1},
		Instruction{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	)
}

// TestSubBorrowPolarity exercises the maintainer-reported scenario directly:
// SUB I0,#0,#1 borrows (0-1 wraps), so UML's carry/borrow bit must read 1
// even though AArch64's own SUBS leaves NZCV.C meaning "no borrow" (0 here).
func TestSubBorrowPolarity(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpSub, Size: Size8, FlagMask: FlagC | FlagV | FlagZ | FlagS,
			Param:     [4]Param{IntRegParam(0), ImmParam(0), ImmParam(1)},
			NumParams: 3,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	flags := state.R[7]
	require.Equal(t, uint64(1), flags&uint64(FlagC), "0-1 borrows, so UML carry must read 1")
}

// TestCmpBorrowPolarity checks the same polarity fix for CMP, which shares
// emitAddSub's sub=true path with SUB but never writes a destination.
func TestCmpBorrowPolarity(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpCmp, Size: Size8, FlagMask: FlagC | FlagZ,
			Param:     [4]Param{ImmParam(0), ImmParam(1)},
			NumParams: 2,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	flags := state.R[7]
	require.Equal(t, uint64(1), flags&uint64(FlagC), "CMP 0,1 borrows, so UML carry must read 1")
}

// TestSubbConsumesInvertedCarryIn checks that a carry-dependent SUBB reload
// (loadCarry(true)) correctly turns a pending UML borrow into the "no
// borrow" carry-in AArch64's SBC instruction expects, so a chained
// multi-word subtraction keeps its borrow propagating through the second
// limb rather than losing or doubling it.
func TestSubbConsumesInvertedCarryIn(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		// I0 = 0 - 1: borrows, UML carry -> 1.
		{
			Op: OpSub, Size: Size8, FlagMask: FlagC,
			Param:     [4]Param{IntRegParam(0), ImmParam(0), ImmParam(1)},
			NumParams: 3,
		},
		// I1 = 5 - 0 - borrow(1) = 4, no further borrow.
		{
			Op: OpSubb, Size: Size8, FlagMask: FlagC | FlagZ,
			Param:     [4]Param{IntRegParam(1), ImmParam(5), ImmParam(0)},
			NumParams: 3,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(4), state.R[1])
	require.Zero(t, state.R[7]&uint64(FlagC), "5-0-1 does not borrow")
}

// TestCondAReadsInvertedCarry checks that CondA/CondBE (HI/LS), reloaded via
// loadCarry(true) in emitSkip, read the AArch64-native no-borrow polarity
// rather than UML's borrow bit after a SUB leaves the cache logical.
func TestCondAReadsInvertedCarry(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := []Instruction{
		// 5 - 1 = 4, no borrow: A (unsigned greater) should hold post-CMP.
		{
			Op: OpCmp, Size: Size8, FlagMask: FlagC | FlagZ,
			Param:     [4]Param{ImmParam(5), ImmParam(1)},
			NumParams: 2,
		},
		{
			Op: OpMov, Size: Size8, Condition: CondA,
			Param:     [4]Param{IntRegParam(0), ImmParam(1)},
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
	require.Equal(t, uint64(1), state.R[0], "5 is unsigned-above 1, CondA must take the conditional mov")
}

// TestMuluFlagSynthesis checks MULU's widened-multiply flags: Z must see
// both halves of the 128-bit product, V reflects whether the high half
// overflowed a single-width result, and S mirrors the high half's sign bit.
func TestMuluFlagSynthesis(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpMulu, Size: Size8, FlagMask: FlagZ | FlagV | FlagS,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(0xFFFFFFFFFFFFFFFF), ImmParam(2)},
			NumParams: 4,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFE), state.R[0], "low half of (2^64-1)*2")
	require.Equal(t, uint64(1), state.R[1], "high half of (2^64-1)*2")
	flags := state.R[7]
	require.Zero(t, flags&uint64(FlagZ), "product is nonzero")
	require.Equal(t, uint64(FlagV), flags&uint64(FlagV), "high half is nonzero, so V must be set")
	require.Zero(t, flags&uint64(FlagS), "high half's top bit is clear here")
}

// TestMuluFlagSynthesisZero checks MULU's Z flag requires BOTH halves zero,
// not just the high half.
func TestMuluFlagSynthesisZero(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpMulu, Size: Size8, FlagMask: FlagZ | FlagV,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(0), ImmParam(5)},
			NumParams: 4,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	flags := state.R[7]
	require.Equal(t, uint64(FlagZ), flags&uint64(FlagZ), "0*5 has both halves zero")
	require.Zero(t, flags&uint64(FlagV))
}

// TestDivuByZeroSetsOverflowAndLeavesOperandsUntouched checks the explicit
// zero-divisor path: V must be set via NZCV and both the quotient and
// remainder destinations must retain their prior values rather than the
// silent zero AArch64's UDIV would otherwise produce.
func TestDivuByZeroSetsOverflowAndLeavesOperandsUntouched(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	state.R[0] = 0xAAAA
	state.R[1] = 0xBBBB
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpDivu, Size: Size8, FlagMask: FlagV,
			Param:     [4]Param{IntRegParam(0), IntRegParam(1), ImmParam(42), ImmParam(0)},
			NumParams: 4,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(0xAAAA), state.R[0], "quotient destination must be untouched on divide by zero")
	require.Equal(t, uint64(0xBBBB), state.R[1], "remainder destination must be untouched on divide by zero")
	flags := state.R[7]
	require.Equal(t, uint64(FlagV), flags&uint64(FlagV), "divide by zero must set V")
}

// TestDivuAliasedDestinationKeepsQuotient checks that when the quotient and
// remainder both classify to the same location, the remainder store is
// skipped rather than clobbering the quotient that was just written there.
func TestDivuAliasedDestinationKeepsQuotient(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpDivu, Size: Size8,
			Param:     [4]Param{IntRegParam(0), IntRegParam(0), ImmParam(17), ImmParam(5)},
			NumParams: 4,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(3), state.R[0], "17/5 = 3; the aliased remainder store must not clobber the quotient")
}

// TestShlCarryOut checks that a one-bit left shift of an operand with its
// top bit set produces UML carry 1, the boundary case called out
// explicitly in the shift carry requirements.
func TestShlCarryOut(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpShl, Size: Size8, FlagMask: FlagC | FlagZ,
			Param:     [4]Param{IntRegParam(0), ImmParam(0x8000000000000000), ImmParam(1)},
			NumParams: 3,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Zero(t, state.R[0], "top bit shifted out, shifted-in zero, result is 0")
	flags := state.R[7]
	require.Equal(t, uint64(FlagC), flags&uint64(FlagC), "bit shifted out of the top was 1")
}

// TestShrCarryOut checks the mirrored right-shift boundary case: the bottom
// bit of the original operand becomes the carry-out.
func TestShrCarryOut(t *testing.T) {
	gen, cache, state := newTestGenerator(t)
	instructions := getflgsAndExit([]Instruction{
		{
			Op: OpShr, Size: Size8, FlagMask: FlagC,
			Param:     [4]Param{IntRegParam(0), ImmParam(3), ImmParam(1)},
			NumParams: 3,
		},
	})
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(1), state.R[0], "3 >> 1 = 1")
	flags := state.R[7]
	require.Equal(t, uint64(FlagC), flags&uint64(FlagC), "bit 0 of the original operand (3) was 1")
}
