package locpak

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepStatus classifies the outcome of one pipeline step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepWarned  StepStatus = "warned"
	StepFailed  StepStatus = "failed"
)

// StepResult records one pipeline step for the run report.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RebuildReport is the full record of one rebuild run.
type RebuildReport struct {
	RunID        string       `json:"run_id"`
	Package      string       `json:"package"`
	Version      string       `json:"version"`
	BuildString  string       `json:"build_string,omitempty"`
	CondaVersion string       `json:"conda_version,omitempty"`
	GitCommit    string       `json:"git_commit,omitempty"`
	GitDirty     bool         `json:"git_dirty,omitempty"`
	Artifact     string       `json:"artifact,omitempty"`
	B3Sum        string       `json:"b3sum,omitempty"`
	Steps        []StepResult `json:"steps"`
	Failure      string       `json:"failure,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// RebuildOptions controls which pipeline phases run.
type RebuildOptions struct {
	// BuildOnly skips uninstall, install and residue cleanup so the
	// build can be iterated on without touching the environment.
	BuildOnly bool
}

// runRebuild rebuilds the package of the repository at baseDir and installs
// it into the active environment. Phases, in order: remove the previous
// install (failure tolerated), gate the manager version, ensure the build
// helper, build, install from the local channel, clean residue. Build and
// install failures decide the verdict; cleanup never does.
func runRebuild(baseDir string, mgr Manager, opts RebuildOptions) (*RebuildReport, error) {
	release, err := acquireRunLock()
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := LoadRecipe(baseDir, RecipeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %v", err)
	}

	report := &RebuildReport{
		RunID:     uuid.NewString(),
		Package:   rec.Package.Name,
		Version:   rec.Package.Version,
		StartedAt: time.Now(),
	}

	repoRoot, rootErr := findRepoRoot(baseDir)
	if rootErr == nil {
		report.GitCommit, report.GitDirty = repoState(repoRoot)
	} else {
		debugf("No repository root from %s: %v\n", baseDir, rootErr)
	}

	step := func(name string, status StepStatus, detail string, started time.Time) {
		report.Steps = append(report.Steps, StepResult{
			Name:     name,
			Status:   status,
			Detail:   detail,
			Duration: time.Since(started),
		})
	}

	// First build/install failure decides the run.
	var runErr error
	fail := func(name, detail string, started time.Time) {
		step(name, StepFailed, detail, started)
		report.Failure = fmt.Sprintf("%s: %s", name, detail)
		runErr = fmt.Errorf("%s", report.Failure)
	}

	// 1. Remove the previous install. Anything short of success is a
	// warning here; a fresh environment simply has nothing to remove.
	if !opts.BuildOnly {
		t0 := time.Now()
		colArrow.Print("-> ")
		colSuccess.Printf("Removing previous install of %s\n", rec.Package.Name)
		isCriticalAtomic.Store(1)
		res, err := mgr.Remove(rec.Package.Name)
		isCriticalAtomic.Store(0)
		switch {
		case err != nil:
			cPrintf(colWarn, "Warning: remove did not run: %v\n", err)
			step("uninstall", StepWarned, err.Error(), t0)
		case res.Failed() && isNotInstalled(res):
			step("uninstall", StepSkipped, "not installed", t0)
		case res.Failed():
			cPrintf(colWarn, "Warning: remove exited %d; continuing\n", res.ExitCode)
			step("uninstall", StepWarned, fmt.Sprintf("exit %d", res.ExitCode), t0)
		default:
			step("uninstall", StepOK, "", t0)
		}
	}

	// 2. Version gate: local-channel installs need the fix shipped in
	// minCondaVersion.
	if runErr == nil {
		t0 := time.Now()
		ver, err := mgr.Version()
		if err != nil {
			fail("version-gate", fmt.Sprintf("query manager version: %v", err), t0)
		} else {
			report.CondaVersion = ver
			if condaNeedsUpgrade(ver) {
				colArrow.Print("-> ")
				colSuccess.Printf("conda %s predates %s, upgrading\n", ver, minCondaVersion)
				res, err := mgr.Install("conda>="+minCondaVersion, InstallOptions{})
				switch {
				case err != nil:
					fail("version-gate", fmt.Sprintf("upgrade conda: %v", err), t0)
				case res.Failed():
					fail("version-gate", fmt.Sprintf("upgrade conda: exit %d", res.ExitCode), t0)
				default:
					step("version-gate", StepOK, "upgraded from "+ver, t0)
				}
			} else {
				step("version-gate", StepOK, ver, t0)
			}
		}
	}

	// 3. The build subcommand ships in a helper package; install it when
	// the listing shows no package carrying its name prefix.
	if runErr == nil {
		t0 := time.Now()
		pkgs, err := mgr.List(buildHelperPkg)
		if err != nil {
			fail("build-helper", fmt.Sprintf("list packages: %v", err), t0)
		} else if buildHelperPresent(pkgs) {
			step("build-helper", StepSkipped, "already installed", t0)
		} else {
			colArrow.Print("-> ")
			colSuccess.Printf("Installing %s\n", buildHelperPkg)
			res, err := mgr.Install(buildHelperPkg, InstallOptions{})
			switch {
			case err != nil:
				fail("build-helper", fmt.Sprintf("install %s: %v", buildHelperPkg, err), t0)
			case res.Failed():
				fail("build-helper", fmt.Sprintf("install %s: exit %d", buildHelperPkg, res.ExitCode), t0)
			default:
				step("build-helper", StepOK, "installed", t0)
			}
		}
	}

	// 4. Build. Every line lands in the log; only BUILD/TEST status lines
	// reach the console unless verbose.
	buildOpts := BuildOptions{Python: PythonPin, OldBuildString: true}
	logPath := filepath.Join(StateDir, "logs", "build-"+report.RunID+".log")
	if runErr == nil {
		t0 := time.Now()
		colArrow.Print("-> ")
		colSuccess.Printf("Building %s %s (python %s)\n", rec.Package.Name, rec.Package.Version, buildOpts.Python)

		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			fail("build", fmt.Sprintf("create log dir: %v", err), t0)
		} else {
			logFile, err := os.Create(logPath)
			if err != nil {
				fail("build", fmt.Sprintf("create log file: %v", err), t0)
			} else {
				sink := func(line string) {
					fmt.Fprintln(logFile, line)
					if Verbose || strings.Contains(line, "BUILD") || strings.Contains(line, "TEST") {
						fmt.Println(line)
					}
				}
				res, err := mgr.Build(rec.Dir, buildOpts, sink)
				logFile.Close()
				switch {
				case err != nil:
					fail("build", err.Error(), t0)
				case res.Failed():
					fail("build", fmt.Sprintf("exit %d", res.ExitCode), t0)
				default:
					step("build", StepOK, "", t0)
					locateArtifact(mgr, rec, buildOpts, report)
				}
			}
		}
	}

	// 5. Install the pinned version from the local channel.
	if runErr == nil && !opts.BuildOnly {
		t0 := time.Now()
		colArrow.Print("-> ")
		colSuccess.Printf("Installing %s from the local channel\n", rec.InstallSpec())
		isCriticalAtomic.Store(1)
		res, err := mgr.Install(rec.InstallSpec(), InstallOptions{UseLocal: true})
		isCriticalAtomic.Store(0)
		switch {
		case err != nil:
			fail("install", err.Error(), t0)
		case res.Failed():
			fail("install", fmt.Sprintf("exit %d", res.ExitCode), t0)
		default:
			step("install", StepOK, rec.InstallSpec(), t0)
		}
	}

	// 6. Cleanup runs regardless of the verdict and never changes it.
	if !opts.BuildOnly {
		t0 := time.Now()
		warnings := cleanupResidue(mgr, rec, repoRoot)
		if len(warnings) == 0 {
			step("cleanup", StepOK, "", t0)
		} else {
			step("cleanup", StepWarned, strings.Join(warnings, "; "), t0)
		}
	}

	report.FinishedAt = time.Now()
	finalizeRun(report, logPath)

	if runErr != nil {
		return report, runErr
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Done: %s in %s\n", rec.InstallSpec(), report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	return report, nil
}

// locateArtifact records the built package file, preferring the path the
// build tool reports and falling back to the newest match in the build
// cache. Best-effort: a rebuild does not fail for want of bookkeeping.
func locateArtifact(mgr Manager, rec *Recipe, opts BuildOptions, report *RebuildReport) {
	bldRoot := BldDir
	if outs, err := mgr.BuildOutput(rec.Dir, opts); err == nil && len(outs) > 0 {
		candidate := outs[len(outs)-1]
		if _, err := os.Stat(candidate); err == nil {
			report.Artifact = candidate
		}
		if bldRoot == "" {
			// <bld>/<subdir>/<file>
			bldRoot = filepath.Dir(filepath.Dir(candidate))
		}
	} else if err != nil {
		debugf("build --output failed: %v\n", err)
	}

	if report.Artifact == "" && bldRoot != "" {
		if p, err := findNewestArtifact(bldRoot, rec.Package.Name); err == nil {
			report.Artifact = p
		} else {
			debugf("artifact search: %v\n", err)
		}
	}

	if report.Artifact == "" {
		return
	}
	if sum, err := ComputeChecksum(report.Artifact); err == nil {
		report.B3Sum = sum
	}
	if meta, err := ReadArtifactMetadata(report.Artifact); err == nil {
		report.BuildString = meta.Build
	}
}

// finalizeRun persists the run: report JSON, compressed build log, ledger
// row. All best-effort; a finished rebuild is not failed by bookkeeping.
func finalizeRun(report *RebuildReport, logPath string) {
	if err := saveReport(report); err != nil {
		cPrintf(colWarn, "Warning: could not save run report: %v\n", err)
	}

	if _, err := os.Stat(logPath); err == nil {
		if err := compressXZ(logPath, logPath+".xz"); err != nil {
			cPrintf(colWarn, "Warning: could not compress build log: %v\n", err)
		} else if err := os.Remove(logPath); err != nil {
			debugf("remove raw log: %v\n", err)
		}
	}

	if err := appendRun(report); err != nil {
		cPrintf(colWarn, "Warning: could not record run: %v\n", err)
	}
}

func saveReport(report *RebuildReport) error {
	dir := filepath.Join(StateDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "build-"+report.RunID+".json"), data, 0o644)
}

func handleRebuildCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	verbose := fs.Bool("v", false, "echo every build output line")
	recipeDir := fs.String("recipe", "", "recipe directory (overrides config)")
	fs.Parse(args)
	if *verbose {
		Verbose = true
	}
	if *recipeDir != "" {
		RecipeDir = *recipeDir
	}

	mgr := NewCondaCLI(Exec)
	_, err := runRebuild(".", mgr, RebuildOptions{})
	return err
}

func handleBuildCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	verbose := fs.Bool("v", false, "echo every build output line")
	recipeDir := fs.String("recipe", "", "recipe directory (overrides config)")
	fs.Parse(args)
	if *verbose {
		Verbose = true
	}
	if *recipeDir != "" {
		RecipeDir = *recipeDir
	}

	mgr := NewCondaCLI(Exec)
	_, err := runRebuild(".", mgr, RebuildOptions{BuildOnly: true})
	return err
}

// handleRemoveCommand uninstalls the package. Not-installed counts as done;
// the point is the end state.
func handleRemoveCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	fs.Parse(args)

	name := ""
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	} else {
		rec, err := LoadRecipe(".", RecipeDir)
		if err != nil {
			return fmt.Errorf("failed to load recipe: %v", err)
		}
		name = rec.Package.Name
	}

	mgr := NewCondaCLI(Exec)
	colArrow.Print("-> ")
	colSuccess.Printf("Removing %s\n", name)
	isCriticalAtomic.Store(1)
	res, err := mgr.Remove(name)
	isCriticalAtomic.Store(0)
	if err != nil {
		return err
	}
	if res.Failed() {
		if isNotInstalled(res) {
			cPrintln(colInfo, "Not installed; nothing to remove")
			return nil
		}
		return fmt.Errorf("remove %s: exit %d", name, res.ExitCode)
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Removed %s\n", name)
	return nil
}
