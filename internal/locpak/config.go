package locpak

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// findConfigFile resolves the config path: $LOCPAK_CONF wins, then
// .locpak.conf at the repository root (or the working directory when not in
// a repository), then ~/.config/locpak/config. Missing files are fine; the
// loader treats an absent path as an empty config.
func findConfigFile() string {
	if p := os.Getenv("LOCPAK_CONF"); p != "" {
		return p
	}
	dir, err := os.Getwd()
	if err == nil {
		if root, err := findRepoRoot(dir); err == nil {
			dir = root
		}
		p := filepath.Join(dir, ".locpak.conf")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".locpak.conf"
	}
	return filepath.Join(home, ".config", "locpak", "config")
}

// Load the config file and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge LOCPAK_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge LOCPAK_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "LOCPAK_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	// Import CONDA_EXE from the environment if present, without overwriting
	// an explicit config file value. Conda-managed shells export it.
	if exe := os.Getenv("CONDA_EXE"); exe != "" {
		if _, exists := cfg.Values["LOCPAK_CONDA"]; !exists {
			cfg.Values["LOCPAK_CONDA"] = exe
		}
	}
	// CONDA_BLD_PATH points at the build root when users relocate it.
	if bld := os.Getenv("CONDA_BLD_PATH"); bld != "" {
		if _, exists := cfg.Values["LOCPAK_BLD_DIR"]; !exists {
			cfg.Values["LOCPAK_BLD_DIR"] = bld
		}
	}
}

func initConfig(cfg *Config) {
	CondaBin = cfg.Values["LOCPAK_CONDA"]
	if CondaBin == "" {
		CondaBin = "conda"
	}

	PythonPin = cfg.Values["LOCPAK_PYTHON"]
	if PythonPin == "" {
		PythonPin = defaultPythonPin
	}

	RecipeDir = cfg.Values["LOCPAK_RECIPE"]

	wantDebug := cfg.Values["LOCPAK_DEBUG"]
	Debug = false
	if wantDebug == "1" {
		Debug = true
	}

	BldDir = cfg.Values["LOCPAK_BLD_DIR"]
	EggInfoDir = cfg.Values["LOCPAK_EGG_INFO"]

	StateDir = cfg.Values["LOCPAK_STATE_DIR"]
	if StateDir == "" {
		dir, err := os.Getwd()
		if err != nil {
			dir = "."
		}
		if root, err := findRepoRoot(dir); err == nil {
			dir = root
		}
		StateDir = filepath.Join(dir, ".locpak")
	}
}
