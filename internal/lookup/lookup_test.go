package lookup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeExecutable drops an executable stub into dir and returns its path.
func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	want := writeExecutable(t, dir, "tool")
	t.Setenv("PATH", dir)

	c := New(time.Minute)
	got, err := c.Resolve("tool")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestResolve_CachesHit(t *testing.T) {
	dir := t.TempDir()
	want := writeExecutable(t, dir, "tool")
	t.Setenv("PATH", dir)

	c := New(time.Minute)
	_, err := c.Resolve("tool")
	require.NoError(t, err)

	// The binary disappears, but the cached resolution survives.
	require.NoError(t, os.Remove(want))
	got, err := c.Resolve("tool")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestResolve_FailuresNotCached(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PATH", dir)

	c := New(time.Minute)
	_, err := c.Resolve("tool")
	require.Error(t, err)

	// A freshly installed binary is picked up on the next call.
	want := writeExecutable(t, dir, "tool")
	got, err := c.Resolve("tool")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestNew_NonPositiveTTLUsesDefault(t *testing.T) {
	require.NotNil(t, New(0))
	require.NotNil(t, New(-time.Second))
}
