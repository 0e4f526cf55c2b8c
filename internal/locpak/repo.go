package locpak

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
)

// findRepoRoot walks up from start to the enclosing working-tree root. The
// residue cleanup and default state dir anchor there, not at the current
// directory.
func findRepoRoot(start string) (string, error) {
	repo, err := git.PlainOpenWithOptions(start, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("not inside a repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("repository has no worktree: %v", err)
	}
	return wt.Filesystem.Root(), nil
}

// repoState reports the HEAD short hash and whether the tree is dirty, for
// the run ledger. Failures degrade to zero values; a repository with no
// commits yet builds the same as any other.
func repoState(root string) (commit string, dirty bool) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "", false
	}
	if head, err := repo.Head(); err == nil {
		h := head.Hash().String()
		if len(h) > 8 {
			h = h[:8]
		}
		commit = h
	}
	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			dirty = !status.IsClean()
		}
	}
	return commit, dirty
}
