package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Parallel()

	// Arrange
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "deep"), 0o755))
	for _, name := range []string{"a.hcl", "nested/b.hcl", "nested/deep/c.hcl", "nested/ignore.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	// Act
	found, err := FindFilesByExtension(root, ".hcl")

	// Assert
	require.NoError(t, err)
	assert.Len(t, found, 3)
	for _, f := range found {
		assert.True(t, filepath.IsAbs(f) || f != "", "expected a usable path, got %q", f)
		assert.Equal(t, ".hcl", filepath.Ext(f))
	}
}

func TestFindFilesByExtensionPanicsOnEmptyExtension(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		_, _ = FindFilesByExtension(t.TempDir(), "")
	})
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	t.Parallel()

	// Arrange
	target := filepath.Join(t.TempDir(), "state", "leases")

	// Act & Assert
	require.NoError(t, EnsureDir(target))
	require.NoError(t, EnsureDir(target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
