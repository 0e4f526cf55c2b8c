package locpak

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"
)

func TestFindRepoRoot_FromNestedDir(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := findRepoRoot(nested)
	require.NoError(t, err)
	require.Equal(t, dir, root)
}

func TestFindRepoRoot_NotARepo(t *testing.T) {
	_, err := findRepoRoot(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not inside a repository")
}

func TestRepoState_EmptyRepoDegradesQuietly(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commit, dirty := repoState(dir)
	require.Empty(t, commit)
	require.False(t, dirty)
}

func TestRepoState_UntrackedFilesMarkDirty(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, dirty := repoState(dir)
	require.True(t, dirty)
}

func TestRepoState_NotARepo(t *testing.T) {
	commit, dirty := repoState(t.TempDir())
	require.Empty(t, commit)
	require.False(t, dirty)
}
