package locpak

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeChecksum_StableAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("payload one"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("payload two"), 0o644))

	sumA1, err := ComputeChecksum(a)
	require.NoError(t, err)
	require.Len(t, sumA1, 64)

	sumA2, err := ComputeChecksum(a)
	require.NoError(t, err)
	require.Equal(t, sumA1, sumA2)

	sumB, err := ComputeChecksum(b)
	require.NoError(t, err)
	require.NotEqual(t, sumA1, sumB)
}

func TestComputeChecksum_MissingFile(t *testing.T) {
	_, err := ComputeChecksum(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
