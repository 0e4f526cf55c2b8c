package locpak

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// handleStatusCommand summarizes the repository's package: what the recipe
// declares, what is installed, the newest built artifact, leftover build
// residue and the last recorded run.
func handleStatusCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	rec, err := LoadRecipe(".", RecipeDir)
	if err != nil {
		return fmt.Errorf("failed to load recipe: %v", err)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Recipe: ")
	colNote.Printf("%s %s\n", rec.Package.Name, rec.Package.Version)

	mgr := NewCondaCLI(Exec)
	if pkgs, err := mgr.List(rec.Package.Name); err != nil {
		cPrintf(colWarn, "Warning: could not query installed packages: %v\n", err)
	} else {
		installed := false
		for _, p := range pkgs {
			if p.Name != rec.Package.Name {
				continue
			}
			installed = true
			colArrow.Print("-> ")
			colSuccess.Printf("Installed: ")
			if p.Channel != "" {
				colNote.Printf("%s %s (%s)\n", p.Version, p.Build, p.Channel)
			} else {
				colNote.Printf("%s %s\n", p.Version, p.Build)
			}
		}
		if !installed {
			colArrow.Print("-> ")
			colWarn.Println("Not installed")
		}
	}

	if root, err := resolveBldRoot(); err == nil {
		if p, err := findNewestArtifact(root, rec.Package.Name); err == nil {
			colArrow.Print("-> ")
			colSuccess.Printf("Newest artifact: ")
			if info, err := os.Stat(p); err == nil {
				colNote.Printf("%s (%s)\n", p, humanReadableSize(info.Size()))
			} else {
				colNote.Printf("%s\n", p)
			}
		}
	}

	if repoRoot, err := findRepoRoot("."); err == nil {
		var present []string
		for _, dir := range residueDirs(rec) {
			if _, err := os.Stat(filepath.Join(repoRoot, dir)); err == nil {
				present = append(present, dir)
			}
		}
		if len(present) > 0 {
			colArrow.Print("-> ")
			colWarn.Printf("Build residue at %s: %s\n", repoRoot, strings.Join(present, ", "))
		}
	}

	if l, err := openLedger(StateDir); err == nil {
		defer l.Close()
		if last, err := l.Last(); err == nil && last != nil {
			colArrow.Print("-> ")
			colSuccess.Printf("Last run: ")
			colNote.Printf("%s %s at %s", last.Status, last.Version,
				last.StartedAt.Format("2006-01-02 15:04"))
			if last.Failure != "" {
				colNote.Printf(" (%s)", last.Failure)
			}
			fmt.Println()
		}
	}
	return nil
}
