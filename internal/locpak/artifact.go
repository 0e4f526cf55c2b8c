package locpak

import (
	"compress/bzip2"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// PackageMeta is the metadata a conda artifact carries in info/index.json.
type PackageMeta struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Subdir      string   `json:"subdir"`
	Depends     []string `json:"depends"`
}

// Artifact describes a built package file on disk.
type Artifact struct {
	Path    string
	Size    int64
	ModTime time.Time
	B3Sum   string
	Meta    PackageMeta
}

func isArtifactPath(path string) bool {
	return strings.HasSuffix(path, ".tar.bz2") || strings.HasSuffix(path, ".conda")
}

// findNewestArtifact scans the build cache for package files belonging to
// pkgName and returns the most recently modified one. Artifacts live one
// level below bldDir, in per-platform directories such as linux-64 or
// noarch.
func findNewestArtifact(bldDir, pkgName string) (string, error) {
	var newest string
	var newestModTime time.Time

	for _, ext := range []string{".tar.bz2", ".conda"} {
		pattern := filepath.Join(bldDir, "*", fmt.Sprintf("%s-*%s", pkgName, ext))
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if newest == "" || info.ModTime().After(newestModTime) {
				newest = match
				newestModTime = info.ModTime()
			}
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no package file for %s under %s", pkgName, bldDir)
	}
	return newest, nil
}

// listArtifacts returns every conda package file under the build cache,
// one platform directory deep.
func listArtifacts(bldDir string) ([]string, error) {
	entries, err := os.ReadDir(bldDir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(bldDir, e.Name()))
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir() || !isArtifactPath(f.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(bldDir, e.Name(), f.Name()))
		}
	}
	return paths, nil
}

// ReadArtifactMetadata extracts info/index.json from a conda package file.
// Both package formats are understood: the classic .tar.bz2, and the v2
// .conda which is a zip wrapping zstd-compressed inner tarballs.
func ReadArtifactMetadata(path string) (*PackageMeta, error) {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".tar.bz2"):
		data, err = readIndexFromTarBz2(path)
	case strings.HasSuffix(path, ".conda"):
		data, err = readIndexFromConda(path)
	default:
		return nil, fmt.Errorf("unsupported package format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return parseIndexJSON(data)
}

func readIndexFromTarBz2(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", path, err)
	}
	defer f.Close()

	return readTarEntry(bzip2.NewReader(f), func(name string) bool {
		return name == "info/index.json"
	})
}

func readIndexFromConda(path string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", path, err)
	}
	defer r.Close()

	// The metadata lives in the info-<name>.tar.zst member.
	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "info-") || !strings.HasSuffix(f.Name, ".tar.zst") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		data, err := readTarEntry(zr, func(name string) bool {
			return name == "info/index.json"
		})
		zr.Close()
		rc.Close()
		return data, err
	}
	return nil, fmt.Errorf("no info member in %s", path)
}

func parseIndexJSON(data []byte) (*PackageMeta, error) {
	var meta PackageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse index.json: %w", err)
	}
	if meta.Name == "" || meta.Version == "" {
		return nil, fmt.Errorf("index.json is missing name or version")
	}
	return &meta, nil
}

// inspectArtifact stats, checksums and reads package metadata for path.
func inspectArtifact(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	meta, err := ReadArtifactMetadata(path)
	if err != nil {
		return nil, err
	}
	sum, err := ComputeChecksum(path)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return &Artifact{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		B3Sum:   sum,
		Meta:    *meta,
	}, nil
}

// handleArtifactCommand inspects a package file: the one given, or the
// newest built for the recipe's package.
func handleArtifactCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("artifact", flag.ExitOnError)
	fs.Parse(args)

	var path string
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	} else {
		rec, err := LoadRecipe(".", RecipeDir)
		if err != nil {
			return fmt.Errorf("failed to load recipe: %v", err)
		}
		root, err := resolveBldRoot()
		if err != nil {
			return err
		}
		path, err = findNewestArtifact(root, rec.Package.Name)
		if err != nil {
			return err
		}
	}

	art, err := inspectArtifact(path)
	if err != nil {
		return err
	}

	row := func(label, value string) {
		colArrow.Print("-> ")
		colSuccess.Printf("%-10s", label)
		colNote.Printf(" %s\n", value)
	}
	row("File", art.Path)
	row("Package", fmt.Sprintf("%s %s (%s)", art.Meta.Name, art.Meta.Version, art.Meta.Build))
	row("Platform", art.Meta.Subdir)
	row("Size", humanReadableSize(art.Size))
	row("Modified", art.ModTime.Format("2006-01-02 15:04:05"))
	row("b3sum", art.B3Sum)
	if len(art.Meta.Depends) > 0 {
		row("Depends", strings.Join(art.Meta.Depends, ", "))
	}
	return nil
}
