package locpak

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireRunLock_Exclusive(t *testing.T) {
	old := StateDir
	t.Cleanup(func() { StateDir = old })
	StateDir = filepath.Join(t.TempDir(), ".locpak")

	release, err := acquireRunLock()
	require.NoError(t, err)

	_, err = acquireRunLock()
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running")

	release()

	release2, err := acquireRunLock()
	require.NoError(t, err)
	release2()
}
