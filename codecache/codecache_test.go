package codecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitAdvancesOffsetAndReturnsBaseAddr(t *testing.T) {
	cache, err := New(4096)
	require.NoError(t, err)
	defer cache.Close()

	code := []byte{0x01, 0x02, 0x03, 0x04}
	addr, err := cache.Commit(code)
	require.NoError(t, err)
	require.Equal(t, cache.BaseAddr(), addr)
	require.Equal(t, len(code), cache.NextOffset())
}

func TestAlignToPadsToBoundary(t *testing.T) {
	cache, err := New(4096)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Commit([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	cache.AlignTo(64)
	require.Zero(t, cache.NextOffset()%64)
}

func TestCommitFailsWhenArenaExhausted(t *testing.T) {
	cache, err := New(8)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Commit(make([]byte, 8))
	require.NoError(t, err)
	_, err = cache.Commit([]byte{0})
	require.Error(t, err)
}

func TestCommitAfterFinalizeFails(t *testing.T) {
	cache, err := New(4096)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Finalize())
	_, err = cache.Commit([]byte{0, 0, 0, 0})
	require.Error(t, err)
}

func TestNextOffsetPredictsCommitAddress(t *testing.T) {
	cache, err := New(4096)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Commit([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	predicted := cache.Addr(cache.NextOffset())
	addr, err := cache.Commit([]byte{1, 1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, predicted, addr)
}
