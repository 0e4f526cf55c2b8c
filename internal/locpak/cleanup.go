package locpak

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// residueDirs lists what a build leaves behind at the repository root.
func residueDirs(rec *Recipe) []string {
	egg := EggInfoDir
	if egg == "" {
		egg = rec.EggInfo()
	}
	return []string{"build", "dist", egg}
}

// cleanupResidue purges the build tool's cache and removes build residue at
// the repository root. Problems are echoed and returned as warnings; the
// caller's verdict is never decided here.
func cleanupResidue(mgr Manager, rec *Recipe, repoRoot string) []string {
	var warnings []string
	warn := func(format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		cPrintf(colWarn, "Warning: %s\n", msg)
		warnings = append(warnings, msg)
	}

	colArrow.Print("-> ")
	colSuccess.Println("Cleaning build residue")

	res, err := mgr.Purge()
	if err != nil {
		warn("build purge: %v", err)
	} else if res.Failed() {
		warn("build purge: exit %d", res.ExitCode)
	}

	if repoRoot == "" {
		warn("not inside a repository; leaving build/, dist/ and egg-info alone")
		return warnings
	}

	for _, dir := range residueDirs(rec) {
		target := filepath.Join(repoRoot, dir)
		if _, err := os.Stat(target); err != nil {
			if !os.IsNotExist(err) {
				warn("stat %s: %v", dir, err)
			}
			continue
		}
		debugf("Removing %s\n", target)
		if err := os.RemoveAll(target); err != nil {
			warn("remove %s: %v", dir, err)
		}
	}
	return warnings
}

// handleCleanCommand runs residue cleanup on its own. Best-effort like the
// cleanup phase of a rebuild: warnings are echoed, the exit stays clean.
func handleCleanCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	recipeDir := fs.String("recipe", "", "recipe directory (overrides config)")
	fs.Parse(args)
	if *recipeDir != "" {
		RecipeDir = *recipeDir
	}

	rec, err := LoadRecipe(".", RecipeDir)
	if err != nil {
		return fmt.Errorf("failed to load recipe: %v", err)
	}
	repoRoot, err := findRepoRoot(".")
	if err != nil {
		repoRoot = ""
	}

	cleanupResidue(NewCondaCLI(Exec), rec, repoRoot)
	return nil
}
