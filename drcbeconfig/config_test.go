package drcbeconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv(envVerbose)
	os.Unsetenv(envCacheBytes)
	os.Unsetenv(envTraceLanes)

	cfg := Load()
	require.False(t, cfg.Verbose)
	require.Equal(t, defaultCacheBytes, cfg.CacheBytes)
	require.False(t, cfg.TraceLanes)
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv(envVerbose, "true")
	t.Setenv(envCacheBytes, "2048")
	t.Setenv(envTraceLanes, "true")

	cfg := Load()
	require.True(t, cfg.Verbose)
	require.Equal(t, 2048, cfg.CacheBytes)
	require.True(t, cfg.TraceLanes)
}
