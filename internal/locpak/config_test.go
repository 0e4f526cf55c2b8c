package locpak

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ParsesFileAndStripsQuotes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locpak.conf")
	content := `# build settings
LOCPAK_CONDA="/opt/conda/bin/conda"
LOCPAK_PYTHON='3.7'

LOCPAK_DEBUG=1
not a key value line
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/conda/bin/conda", cfg.Values["LOCPAK_CONDA"])
	require.Equal(t, "3.7", cfg.Values["LOCPAK_PYTHON"])
	require.Equal(t, "1", cfg.Values["LOCPAK_DEBUG"])
	_, ok := cfg.Values["not a key value line"]
	require.False(t, ok)
}

func TestLoadConfig_MissingFileIsEmptyConfig(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	_, ok := cfg.Values["LOCPAK_PYTHON"]
	require.False(t, ok)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locpak.conf")
	require.NoError(t, os.WriteFile(path, []byte("LOCPAK_PYTHON=3.6\n"), 0o644))
	t.Setenv("LOCPAK_PYTHON", "3.9")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "3.9", cfg.Values["LOCPAK_PYTHON"])
}

func TestMergeEnvOverrides_ImportsCondaVarsWithoutClobbering(t *testing.T) {
	t.Setenv("CONDA_EXE", "/usr/local/bin/conda")
	t.Setenv("CONDA_BLD_PATH", "/scratch/conda-bld")

	cfg := &Config{Values: map[string]string{}}
	mergeEnvOverrides(cfg)
	require.Equal(t, "/usr/local/bin/conda", cfg.Values["LOCPAK_CONDA"])
	require.Equal(t, "/scratch/conda-bld", cfg.Values["LOCPAK_BLD_DIR"])

	cfg = &Config{Values: map[string]string{
		"LOCPAK_CONDA":   "/custom/conda",
		"LOCPAK_BLD_DIR": "/custom/bld",
	}}
	mergeEnvOverrides(cfg)
	require.Equal(t, "/custom/conda", cfg.Values["LOCPAK_CONDA"])
	require.Equal(t, "/custom/bld", cfg.Values["LOCPAK_BLD_DIR"])
}

func TestInitConfig_DefaultsAndOverrides(t *testing.T) {
	oldConda, oldPin, oldRecipe, oldDebug := CondaBin, PythonPin, RecipeDir, Debug
	oldBld, oldEgg, oldState := BldDir, EggInfoDir, StateDir
	t.Cleanup(func() {
		CondaBin, PythonPin, RecipeDir, Debug = oldConda, oldPin, oldRecipe, oldDebug
		BldDir, EggInfoDir, StateDir = oldBld, oldEgg, oldState
	})

	cfg := &Config{Values: map[string]string{"LOCPAK_STATE_DIR": "/tmp/locpak-test-state"}}
	initConfig(cfg)
	require.Equal(t, "conda", CondaBin)
	require.Equal(t, defaultPythonPin, PythonPin)
	require.False(t, Debug)
	require.Empty(t, BldDir)
	require.Equal(t, "/tmp/locpak-test-state", StateDir)

	cfg.Values["LOCPAK_CONDA"] = "mamba"
	cfg.Values["LOCPAK_PYTHON"] = "3.8"
	cfg.Values["LOCPAK_DEBUG"] = "1"
	cfg.Values["LOCPAK_EGG_INFO"] = "Thing.egg-info"
	initConfig(cfg)
	require.Equal(t, "mamba", CondaBin)
	require.Equal(t, "3.8", PythonPin)
	require.True(t, Debug)
	require.Equal(t, "Thing.egg-info", EggInfoDir)
}
