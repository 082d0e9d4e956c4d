package hashtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupMissReturnsNoCode(t *testing.T) {
	table := New()
	require.Equal(t, NoCode, table.Lookup(0, 0x1234))
	require.False(t, table.Exists(0, 0x1234))
}

func TestBindThenLookupRoundTrips(t *testing.T) {
	table := New()
	table.Bind(2, 0xdead0000, 0x4000)
	require.True(t, table.Exists(2, 0xdead0000))
	require.Equal(t, uintptr(0x4000), table.Lookup(2, 0xdead0000))
}

func TestBindOverwritesPreviousEntry(t *testing.T) {
	table := New()
	table.Bind(1, 0x100, 0x1000)
	table.Bind(1, 0x100, 0x2000)
	require.Equal(t, uintptr(0x2000), table.Lookup(1, 0x100))
}

func TestModesAreIndependent(t *testing.T) {
	table := New()
	table.Bind(0, 0x100, 0x1000)
	require.False(t, table.Exists(1, 0x100), "mode 1 must not see mode 0's binding")
}

// TestSplitDistributesAcrossLevels checks that two pc values differing only
// in their L1-selecting bits land in distinct l1 buckets, a basic sanity
// check on the L1=5/L2=8 bit split the package documents as its Open
// Question decision.
func TestSplitDistributesAcrossLevels(t *testing.T) {
	table := New()
	pcA := uint32(0x00000000)
	pcB := uint32(0x08000000) // differs in the bits split() assigns to L1
	table.Bind(0, pcA, 0x1000)
	table.Bind(0, pcB, 0x2000)
	require.Equal(t, uintptr(0x1000), table.Lookup(0, pcA))
	require.Equal(t, uintptr(0x2000), table.Lookup(0, pcB))
}
