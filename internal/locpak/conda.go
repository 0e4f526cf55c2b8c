package locpak

import (
	"fmt"
	"os/exec"
	"strings"
)

const (
	// minCondaVersion is the first release where --use-local resolves the
	// local channel reliably; older managers are upgraded before building.
	minCondaVersion = "4.4.4"
	// buildHelperPkg provides the build subcommand. Presence is detected by
	// name prefix in the listing (the helper ships variants like
	// conda-build and conda-build-all).
	buildHelperPkg = "conda-build"

	defaultPythonPin = "3.6"
)

// InstalledPackage is one row of the manager's environment listing.
type InstalledPackage struct {
	Name    string
	Version string
	Build   string
	Channel string
}

// InstallOptions control how a package spec is installed.
type InstallOptions struct {
	UseLocal bool // prefer the local build channel over remote ones
}

// BuildOptions control a recipe build.
type BuildOptions struct {
	Python         string // target runtime pin, e.g. "3.6"
	OldBuildString bool   // legacy py36_0 style build strings
}

// Manager is the package-manager surface the pipeline drives. Everything the
// tool does to the environment goes through this interface so tests can
// substitute a fake. Mutating operations hand back the captured invocation
// for the caller to judge; the error return is reserved for not being able
// to run at all. Cancellation travels inside the implementation's Executor.
type Manager interface {
	Version() (string, error)
	List(filter string) ([]InstalledPackage, error)
	Install(spec string, opts InstallOptions) (*InvocationResult, error)
	Remove(name string) (*InvocationResult, error)
	Build(recipeDir string, opts BuildOptions, sink func(line string)) (*InvocationResult, error)
	BuildOutput(recipeDir string, opts BuildOptions) ([]string, error)
	Purge() (*InvocationResult, error)
}

// CondaCLI implements Manager over the conda binary.
type CondaCLI struct {
	Exec *Executor
	Bin  string
}

func NewCondaCLI(execCtx *Executor) *CondaCLI {
	bin := CondaBin
	if bin == "" {
		bin = "conda"
	}
	return &CondaCLI{Exec: execCtx, Bin: bin}
}

func (c *CondaCLI) command(args ...string) *exec.Cmd {
	return exec.Command(c.Bin, args...)
}

// Version queries `conda --version`. Old releases printed the banner on
// stderr, so the combined output is parsed.
func (c *CondaCLI) Version() (string, error) {
	res, err := c.Exec.Capture(c.command("--version"))
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return "", fmt.Errorf("%s --version exited with code %d: %s", c.Bin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	v := parseCondaVersion(res.Combined())
	if v == "" {
		return "", fmt.Errorf("could not parse manager version from %q", strings.TrimSpace(res.Combined()))
	}
	return v, nil
}

func parseCondaVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "conda" && len(fields) > 1 {
			return fields[1]
		}
		// Some wrappers print the bare version.
		if len(fields) == 1 && strings.Count(fields[0], ".") >= 1 {
			return fields[0]
		}
	}
	return ""
}

// List runs `conda list <filter>` and parses the text listing.
func (c *CondaCLI) List(filter string) ([]InstalledPackage, error) {
	args := []string{"list"}
	if filter != "" {
		args = append(args, filter)
	}
	res, err := c.Exec.Capture(c.command(args...))
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, fmt.Errorf("%s list exited with code %d: %s", c.Bin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return parseCondaList(res.Stdout), nil
}

// parseCondaList parses the human-readable listing: comment lines start
// with '#', data rows are "name version build [channel]".
func parseCondaList(out string) []InstalledPackage {
	var pkgs []InstalledPackage
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pkg := InstalledPackage{
			Name:    fields[0],
			Version: fields[1],
			Build:   fields[2],
		}
		if len(fields) > 3 {
			pkg.Channel = fields[3]
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}

// buildHelperPresent reports whether the build helper shows up in the
// listing: present iff some listed name carries the helper prefix.
func buildHelperPresent(pkgs []InstalledPackage) bool {
	for _, p := range pkgs {
		if strings.HasPrefix(p.Name, buildHelperPkg) {
			return true
		}
	}
	return false
}

func (c *CondaCLI) Install(spec string, opts InstallOptions) (*InvocationResult, error) {
	args := []string{"install", spec}
	if opts.UseLocal {
		args = append(args, "--use-local")
	}
	args = append(args, "--yes")
	return c.Exec.Capture(c.command(args...))
}

func (c *CondaCLI) Remove(name string) (*InvocationResult, error) {
	return c.Exec.Capture(c.command("remove", name, "--yes"))
}

func (c *CondaCLI) Build(recipeDir string, opts BuildOptions, sink func(line string)) (*InvocationResult, error) {
	return c.Exec.Stream(c.command(c.buildArgs(recipeDir, opts)...), sink)
}

// BuildOutput asks the build subcommand for the artifact path(s) it would
// produce, without building.
func (c *CondaCLI) BuildOutput(recipeDir string, opts BuildOptions) ([]string, error) {
	args := append(c.buildArgs(recipeDir, opts), "--output")
	res, err := c.Exec.Capture(c.command(args...))
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, fmt.Errorf("%s build --output exited with code %d: %s", c.Bin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	var paths []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && strings.HasPrefix(line, "/") {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func (c *CondaCLI) buildArgs(recipeDir string, opts BuildOptions) []string {
	args := []string{"build", recipeDir}
	if opts.OldBuildString {
		args = append(args, "--old-build-string")
	}
	if opts.Python != "" {
		args = append(args, "--python", opts.Python)
	}
	return args
}

func (c *CondaCLI) Purge() (*InvocationResult, error) {
	return c.Exec.Capture(c.command("build", "purge"))
}

// isNotInstalled recognizes the remove failure that only means "nothing to
// remove". Both spellings occur across manager releases.
func isNotInstalled(res *InvocationResult) bool {
	if res == nil || !res.Failed() {
		return false
	}
	out := res.Combined()
	return strings.Contains(out, "PackagesNotFoundError") ||
		strings.Contains(out, "PackageNotFoundError") ||
		strings.Contains(out, "PackageNotInstalledError")
}
