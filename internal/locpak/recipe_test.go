package locpak

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMeta = `{% set version = "0.4.0" %}
package:
  name: behavioral-responses
  version: "0.4.0"

build:
  number: 0

requirements:
  build:
    - python
    - setuptools
  run:
    - python
    - taxcalc

about:
  home: https://github.com/example/behavioral-responses
  license: CC0-1.0
`

func TestLoadRecipe_TopLevelMetaYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(sampleMeta), 0o644))

	rec, err := LoadRecipe(dir, "")
	require.NoError(t, err)
	require.Equal(t, "behavioral-responses", rec.Package.Name)
	require.Equal(t, "0.4.0", rec.Package.Version)
	require.Equal(t, dir, rec.Dir)
	require.Equal(t, []string{"python", "taxcalc"}, rec.Requirements.Run)
}

func TestLoadRecipe_SearchesCondaRecipeDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "conda.recipe")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "meta.yaml"), []byte(sampleMeta), 0o644))

	rec, err := LoadRecipe(dir, "")
	require.NoError(t, err)
	require.Equal(t, sub, rec.Dir)
}

func TestLoadRecipe_ExplicitDirWins(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "packaging")
	require.NoError(t, os.MkdirAll(custom, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(custom, "meta.yaml"), []byte(sampleMeta), 0o644))
	// A decoy at the usual location must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.yaml"), []byte(sampleMeta), 0o644))

	rec, err := LoadRecipe(dir, custom)
	require.NoError(t, err)
	require.Equal(t, custom, rec.Dir)
}

func TestLoadRecipe_MissingEverywhere(t *testing.T) {
	_, err := LoadRecipe(t.TempDir(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no meta.yaml")
}

func TestParseRecipe_RejectsMissingFields(t *testing.T) {
	_, err := parseRecipe([]byte("package:\n  version: \"1.0\"\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no package name")

	_, err = parseRecipe([]byte("package:\n  name: thing\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "version")
}

func TestParseRecipe_DropsJinjaLines(t *testing.T) {
	raw := "{% set name = \"behresp\" %}\npackage:\n  name: behresp\n  version: \"0.4.0\"\n"
	rec, err := parseRecipe([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, "behresp", rec.Package.Name)
}

func TestRecipeDerivedNames(t *testing.T) {
	rec := &Recipe{}
	rec.Package.Name = "behavioral-responses"
	rec.Package.Version = "0.4.0"
	require.Equal(t, "behavioral-responses=0.4.0", rec.InstallSpec())
	require.Equal(t, "behavioral_responses.egg-info", rec.EggInfo())
}
