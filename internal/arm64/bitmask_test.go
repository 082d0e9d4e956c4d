package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeBitmaskImmediateRoundTrips(t *testing.T) {
	cases := []struct {
		value uint64
		width int
	}{
		{0x00000001, 32},
		{0x0000ffff, 32},
		{0xf0f0f0f0, 32},
		{0x0000000100000001, 64},
		{0xffff0000ffff0000, 64},
		{0x000000ff000000ff, 64},
	}
	for _, c := range cases {
		n, immr, imms, ok := EncodeBitmaskImmediate(c.value, c.width)
		require.True(t, ok, "value %#x width %d should be encodable", c.value, c.width)
		got, valid := decodeBitMasks(n, imms, immr, c.width)
		require.True(t, valid)
		require.Equal(t, c.value, got)
	}
}

func TestEncodeBitmaskImmediateRejectsAllZeroOrAllOnes(t *testing.T) {
	_, _, _, ok := EncodeBitmaskImmediate(0, 32)
	require.False(t, ok)
	_, _, _, ok = EncodeBitmaskImmediate(0xffffffff, 32)
	require.False(t, ok)
	_, _, _, ok = EncodeBitmaskImmediate(^uint64(0), 64)
	require.False(t, ok)
}

func TestEncodeBitmaskImmediateRejectsNonContiguousPattern(t *testing.T) {
	// 0b101 replicated has no valid rotated-run-of-ones encoding.
	require.False(t, IsValidBitmaskImmediate(0x5, 32))
}

func TestIsValidBitmaskImmediateAgreesWithEncode(t *testing.T) {
	_, _, _, ok := EncodeBitmaskImmediate(0x00ff00ff, 32)
	require.Equal(t, ok, IsValidBitmaskImmediate(0x00ff00ff, 32))
}
