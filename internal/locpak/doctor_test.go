package locpak

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func checksByName(checks []checkResult) map[string]checkResult {
	m := make(map[string]checkResult, len(checks))
	for _, c := range checks {
		m[c.Name] = c
	}
	return m
}

func TestDoctorChecks_HealthyEnvironment(t *testing.T) {
	dir := setupRebuildDir(t)
	f := newFakeManager()

	checks := doctorChecks(f, dir, false)
	require.NotEmpty(t, checks)
	for _, c := range checks {
		require.True(t, c.OK, "%s: %s", c.Name, c.Detail)
	}
}

func TestDoctorChecks_OldManagerNeedsFix(t *testing.T) {
	dir := setupRebuildDir(t)

	f := newFakeManager()
	f.version = "4.3.9"
	byName := checksByName(doctorChecks(f, dir, false))
	require.False(t, byName["manager version"].OK)
	require.Contains(t, byName["manager version"].Detail, "run with -fix")
	require.Equal(t, -1, callIndex(f.calls, "install conda>="+minCondaVersion))

	// With -fix the upgrade is applied on the spot.
	f2 := newFakeManager()
	f2.version = "4.3.9"
	byName = checksByName(doctorChecks(f2, dir, true))
	require.True(t, byName["manager version"].OK)
	require.NotEqual(t, -1, callIndex(f2.calls, "install conda>="+minCondaVersion))
}

func TestDoctorChecks_MissingHelperFixed(t *testing.T) {
	dir := setupRebuildDir(t)

	f := newFakeManager()
	f.listRes = nil
	byName := checksByName(doctorChecks(f, dir, false))
	require.False(t, byName["build helper"].OK)

	f2 := newFakeManager()
	f2.listRes = nil
	byName = checksByName(doctorChecks(f2, dir, true))
	require.True(t, byName["build helper"].OK)
	require.NotEqual(t, -1, callIndex(f2.calls, "install "+buildHelperPkg))
}

func TestDoctorChecks_BareDirectory(t *testing.T) {
	bare := t.TempDir()
	oldState := StateDir
	t.Cleanup(func() { StateDir = oldState })
	StateDir = filepath.Join(bare, ".locpak")

	f := newFakeManager()
	byName := checksByName(doctorChecks(f, bare, false))
	require.False(t, byName["recipe"].OK)
	require.False(t, byName["repository"].OK)
	require.True(t, byName["state dir"].OK)
}
