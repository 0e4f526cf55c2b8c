package locpak

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type checkResult struct {
	Name   string
	OK     bool
	Detail string
}

// doctorChecks probes everything a rebuild needs: manager version against
// the minimum, build helper presence, a parseable recipe, a repository
// root, a writable state dir. With fix set, the manager remediations
// (upgrade, helper install) are applied instead of just reported.
func doctorChecks(mgr Manager, baseDir string, fix bool) []checkResult {
	var checks []checkResult
	add := func(name string, ok bool, detail string) {
		checks = append(checks, checkResult{Name: name, OK: ok, Detail: detail})
	}

	ver, err := mgr.Version()
	if err != nil {
		add("manager version", false, err.Error())
	} else if condaNeedsUpgrade(ver) {
		if fix {
			res, err := mgr.Install("conda>="+minCondaVersion, InstallOptions{})
			switch {
			case err != nil:
				add("manager version", false, fmt.Sprintf("%s; upgrade failed: %v", ver, err))
			case res.Failed():
				add("manager version", false, fmt.Sprintf("%s; upgrade exited %d", ver, res.ExitCode))
			default:
				add("manager version", true, fmt.Sprintf("upgraded from %s", ver))
			}
		} else {
			add("manager version", false, fmt.Sprintf("%s predates %s (run with -fix)", ver, minCondaVersion))
		}
	} else {
		add("manager version", true, ver)
	}

	pkgs, err := mgr.List(buildHelperPkg)
	if err != nil {
		add("build helper", false, err.Error())
	} else if buildHelperPresent(pkgs) {
		add("build helper", true, buildHelperPkg+" installed")
	} else if fix {
		res, err := mgr.Install(buildHelperPkg, InstallOptions{})
		switch {
		case err != nil:
			add("build helper", false, fmt.Sprintf("install failed: %v", err))
		case res.Failed():
			add("build helper", false, fmt.Sprintf("install exited %d", res.ExitCode))
		default:
			add("build helper", true, "installed")
		}
	} else {
		add("build helper", false, buildHelperPkg+" missing (run with -fix)")
	}

	if rec, err := LoadRecipe(baseDir, RecipeDir); err != nil {
		add("recipe", false, err.Error())
	} else {
		add("recipe", true, fmt.Sprintf("%s %s (%s)", rec.Package.Name, rec.Package.Version, rec.Dir))
	}

	if root, err := findRepoRoot(baseDir); err != nil {
		add("repository", false, "no repository root; residue cleanup will be skipped")
	} else {
		add("repository", true, root)
	}

	if err := os.MkdirAll(StateDir, 0o755); err != nil {
		add("state dir", false, err.Error())
	} else {
		probe := filepath.Join(StateDir, ".doctor-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			add("state dir", false, fmt.Sprintf("not writable: %v", err))
		} else {
			os.Remove(probe)
			add("state dir", true, StateDir)
		}
	}

	return checks
}

func handleDoctorCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	fix := fs.Bool("fix", false, "apply remediations (manager upgrade, helper install)")
	fs.Parse(args)

	checks := []checkResult{}
	if path, err := exec.LookPath(CondaBin); err != nil {
		checks = append(checks, checkResult{Name: "manager binary", OK: false,
			Detail: fmt.Sprintf("%s not on PATH", CondaBin)})
	} else {
		checks = append(checks, checkResult{Name: "manager binary", OK: true, Detail: path})
	}

	// Manager probes only make sense with a binary to run.
	if checks[0].OK {
		checks = append(checks, doctorChecks(NewCondaCLI(Exec), ".", *fix)...)
	}

	failed := 0
	for _, c := range checks {
		colArrow.Print("-> ")
		if c.OK {
			colSuccess.Printf("%-16s", c.Name)
			colNote.Printf(" %s\n", c.Detail)
		} else {
			colError.Printf("%-16s %s\n", c.Name, c.Detail)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	colArrow.Print("-> ")
	colSuccess.Println("All checks passed")
	return nil
}
