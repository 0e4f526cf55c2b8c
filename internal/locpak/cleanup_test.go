package locpak

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResidueDirs_EggInfoFollowsPackageName(t *testing.T) {
	old := EggInfoDir
	t.Cleanup(func() { EggInfoDir = old })

	rec := &Recipe{}
	rec.Package.Name = "behavioral-responses"

	EggInfoDir = ""
	require.Equal(t, []string{"build", "dist", "behavioral_responses.egg-info"}, residueDirs(rec))

	EggInfoDir = "Behavioral_Responses.egg-info"
	require.Equal(t, []string{"build", "dist", "Behavioral_Responses.egg-info"}, residueDirs(rec))
}

func TestCleanupResidue_RemovesOnlyExisting(t *testing.T) {
	dir := setupRebuildDir(t)
	rec := &Recipe{}
	rec.Package.Name = "behresp"
	rec.Package.Version = "0.4.0"

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0o755))
	// No dist, no egg-info: absent dirs are skipped without a word.

	f := newFakeManager()
	warnings := cleanupResidue(f, rec, dir)
	require.Empty(t, warnings)

	_, err := os.Stat(filepath.Join(dir, "build"))
	require.True(t, os.IsNotExist(err))
	require.NotEqual(t, -1, callIndex(f.calls, "purge"))
}

func TestCleanupResidue_NoRepoRootLeavesDirs(t *testing.T) {
	dir := setupRebuildDir(t)
	addResidue(t, dir)
	rec := &Recipe{}
	rec.Package.Name = "behresp"

	f := newFakeManager()
	warnings := cleanupResidue(f, rec, "")
	require.NotEmpty(t, warnings)
	// The purge still ran; only the directory sweep is skipped.
	require.NotEqual(t, -1, callIndex(f.calls, "purge"))
	require.DirExists(t, filepath.Join(dir, "build"))
	require.DirExists(t, filepath.Join(dir, "dist"))
}

func TestCleanupResidue_PurgeFailureIsWarning(t *testing.T) {
	dir := setupRebuildDir(t)
	rec := &Recipe{}
	rec.Package.Name = "behresp"

	f := newFakeManager()
	f.purgeRes = &InvocationResult{ExitCode: 1}
	warnings := cleanupResidue(f, rec, dir)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "purge")
}
