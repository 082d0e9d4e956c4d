package drcbearm64

import (
	"encoding/binary"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/xyproto/drcbearm64/codecache"
	"github.com/xyproto/drcbearm64/hashtable"
)

func newTestGenerator(t *testing.T) (*Generator, *codecache.Cache, *MachineState) {
	t.Helper()
	cache, err := codecache.New(64 * 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	state := &MachineState{}
	gen := NewGenerator(uintptr(unsafe.Pointer(state)), 0, cache, hashtable.New())
	return gen, cache, state
}

// TestGenerateMovStoreExit mirrors cmd/drcbedump's fixture: a MOV into I0
// followed by an immediate-addressed STORE and an EXIT, the simplest
// possible non-empty block. On an arm64 host it also runs the block and
// checks the memory side effect; on any other host it only checks that
// generation itself succeeds.
func TestGenerateMovStoreExit(t *testing.T) {
	gen, cache, state := newTestGenerator(t)

	var buf [8]byte
	bufAddr := uintptr(unsafe.Pointer(&buf[0]))

	instructions := []Instruction{
		{
			Op: OpMov, Size: Size8,
			Param:     [4]Param{IntRegParam(0), ImmParam(0x1122334455667788)},
			NumParams: 2,
		},
		{
			Op: OpStore, Size: Size8,
			Param:     [4]Param{ImmParam(uint64(bufAddr)), ImmParam(0), ImmParam(1), IntRegParam(0)},
			NumParams: 4,
		},
		{
			Op: OpExit, Size: Size4,
			Param:     [4]Param{ImmParam(0)},
			NumParams: 1,
		},
	}

	entry, err := gen.Generate(instructions)
	require.NoError(t, err)
	require.NotZero(t, entry)
	require.Zero(t, entry%4, "every emitted instruction is 4 bytes wide")

	if runtime.GOARCH != "arm64" {
		t.Skip("execution requires an arm64 host")
	}
	require.NoError(t, Execute(cache, entry, state))
	require.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(buf[:]))
}

// TestGenerateResetsBetweenCalls verifies Reset clears per-block state (the
// label table in particular) so a second Generate call on the same
// Generator doesn't see labels bound by an earlier, unrelated block.
func TestGenerateResetsBetweenCalls(t *testing.T) {
	gen, _, _ := newTestGenerator(t)

	first := []Instruction{
		{Op: OpLabel, Param: [4]Param{ImmParam(1)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(first)
	require.NoError(t, err)

	second := []Instruction{
		// references the same label id the first block bound; must not
		// resolve against state left over from that earlier Generate call.
		{Op: OpJmp, Condition: CondAlways, Param: [4]Param{ImmParam(1)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err = gen.Generate(second)
	require.Error(t, err, "label 1 from the first block must not leak into the second")
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

// TestGenerateUnsupportedOpcode exercises Generate's dispatch-table miss
// path: an opcode value never registered in opcodeTable must fail fast
// with ErrCatUnsupported rather than panic.
func TestGenerateUnsupportedOpcode(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: Opcode(9999), Size: Size4},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatUnsupported, genErr.Category)
}

// TestGenerateUnresolvedLabel checks that a JMP to a label that is never
// bound anywhere in the block surfaces as a resolveFixups error instead of
// silently branching to offset zero.
func TestGenerateUnresolvedLabel(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpJmp, Condition: CondAlways, Param: [4]Param{ImmParam(42)}, NumParams: 1},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}

// TestHashBindDeferredUntilCommit confirms a HASH opcode only becomes
// visible to HashExists/Lookup once the owning block has actually been
// committed to the cache, since the bind address is only known then. The
// bound address is the HASH opcode's own position, right after the entry
// prologue.
func TestHashBindDeferredUntilCommit(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	require.False(t, gen.HashExists(3, 0x1000))

	instructions := []Instruction{
		{Op: OpHash, Param: [4]Param{ImmParam(3), ImmParam(0x1000)}, NumParams: 2},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)
	require.True(t, gen.HashExists(3, 0x1000))
	prologue := &Generator{}
	prologue.Reset()
	require.NoError(t, prologue.EmitEntry())
	require.Equal(t, entry+uintptr(prologue.asm.Offset()), gen.hash.Lookup(3, 0x1000))
}

// TestGenerateAddFlagsSetting exercises an ALU opcode that both reads and
// writes integer registers and carries a flag mask, the shape most other
// arithmetic/bitwise lowerers share.
func TestGenerateAddFlagsSetting(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{
			Op: OpAdd, Size: Size4, FlagMask: FlagC | FlagZ,
			Param:     [4]Param{IntRegParam(1), IntRegParam(1), ImmParam(5)},
			NumParams: 3,
		},
		{Op: OpExit, Size: Size4, Param: [4]Param{ImmParam(0)}, NumParams: 1},
	}
	entry, err := gen.Generate(instructions)
	require.NoError(t, err)
	require.NotZero(t, entry)
}

// TestGenerateCallcRequiresImmediateTarget checks CALLC's explicit
// validation of its first parameter, one of the few opcodes that rejects a
// whole parameter kind rather than just an unsupported width.
func TestGenerateCallcRequiresImmediateTarget(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	instructions := []Instruction{
		{Op: OpCallc, Param: [4]Param{IntRegParam(0), IntRegParam(1)}, NumParams: 2},
	}
	_, err := gen.Generate(instructions)
	require.Error(t, err)
	var genErr *GenError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, ErrCatEncode, genErr.Category)
}
