package locpak

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recipe is the subset of the conda recipe (meta.yaml) the tool needs.
type Recipe struct {
	Package struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"package"`
	Build struct {
		Number int    `yaml:"number"`
		String string `yaml:"string"`
	} `yaml:"build"`
	Requirements struct {
		Build []string `yaml:"build"`
		Run   []string `yaml:"run"`
	} `yaml:"requirements"`
	About struct {
		Home    string `yaml:"home"`
		License string `yaml:"license"`
		Summary string `yaml:"summary"`
	} `yaml:"about"`

	Dir string `yaml:"-"` // directory the recipe was loaded from
}

// recipeSearchDirs are tried in order when no explicit recipe dir is
// configured. Projects keep meta.yaml either at the top level or in a
// conda.recipe/ (sometimes recipe/) subdirectory.
var recipeSearchDirs = []string{".", "conda.recipe", "recipe"}

// LoadRecipe finds and parses meta.yaml. dir may be empty, in which case the
// usual locations under base are searched.
func LoadRecipe(base, dir string) (*Recipe, error) {
	var candidates []string
	if dir != "" {
		candidates = []string{dir}
	} else {
		candidates = recipeSearchDirs
	}

	for _, cand := range candidates {
		rdir := cand
		if !filepath.IsAbs(rdir) {
			rdir = filepath.Join(base, cand)
		}
		metaPath := filepath.Join(rdir, "meta.yaml")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %v", metaPath, err)
		}
		r, err := parseRecipe(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", metaPath, err)
		}
		r.Dir = rdir
		return r, nil
	}
	return nil, fmt.Errorf("no meta.yaml found (looked in %s)", strings.Join(candidates, ", "))
}

func parseRecipe(data []byte) (*Recipe, error) {
	// Recipes often open with jinja set-blocks ({% set ... %}); those lines
	// are not YAML and are dropped before decoding.
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "{%") {
			continue
		}
		kept = append(kept, line)
	}

	var r Recipe
	if err := yaml.Unmarshal([]byte(strings.Join(kept, "\n")), &r); err != nil {
		return nil, err
	}
	if r.Package.Name == "" {
		return nil, fmt.Errorf("recipe has no package name")
	}
	if r.Package.Version == "" {
		return nil, fmt.Errorf("recipe has no package version")
	}
	return &r, nil
}

// InstallSpec pins the exact version the recipe declares.
func (r *Recipe) InstallSpec() string {
	return r.Package.Name + "=" + r.Package.Version
}

// EggInfo derives the setuptools metadata directory name the build leaves at
// the repository root. Distribution names use underscores where package
// names use hyphens.
func (r *Recipe) EggInfo() string {
	return strings.ReplaceAll(r.Package.Name, "-", "_") + ".egg-info"
}
