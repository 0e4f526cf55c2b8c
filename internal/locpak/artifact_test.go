package locpak

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// writeCondaPackage builds a minimal v2 package at path: a zip wrapping an
// info-*.tar.zst that carries info/index.json.
func writeCondaPackage(t *testing.T, path string, meta PackageMeta) {
	t.Helper()

	indexJSON, err := json.Marshal(meta)
	require.NoError(t, err)

	var inner bytes.Buffer
	zw, err := zstd.NewWriter(&inner)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "info/index.json",
		Mode:     0o644,
		Size:     int64(len(indexJSON)),
		Typeflag: tar.TypeReg,
	}))
	_, err = tw.Write(indexJSON)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	zipw := zip.NewWriter(out)
	stem := strings.TrimSuffix(filepath.Base(path), ".conda")
	w, err := zipw.Create("info-" + stem + ".tar.zst")
	require.NoError(t, err)
	_, err = w.Write(inner.Bytes())
	require.NoError(t, err)
	require.NoError(t, zipw.Close())
}

func TestIsArtifactPath_KnownSuffixes(t *testing.T) {
	require.True(t, isArtifactPath("noarch/behresp-0.4.0-py36_0.conda"))
	require.True(t, isArtifactPath("linux-64/behresp-0.4.0-py36_0.tar.bz2"))
	require.False(t, isArtifactPath("noarch/repodata.json"))
	require.False(t, isArtifactPath("channel-index.json"))
}

func TestReadArtifactMetadata_CondaV2(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noarch", "behresp-0.4.0-py36_0.conda")
	writeCondaPackage(t, path, PackageMeta{
		Name:        "behresp",
		Version:     "0.4.0",
		Build:       "py36_0",
		BuildNumber: 0,
		Subdir:      "noarch",
		Depends:     []string{"python >=3.6", "taxcalc"},
	})

	meta, err := ReadArtifactMetadata(path)
	require.NoError(t, err)
	require.Equal(t, "behresp", meta.Name)
	require.Equal(t, "0.4.0", meta.Version)
	require.Equal(t, "py36_0", meta.Build)
	require.Equal(t, "noarch", meta.Subdir)
	require.Len(t, meta.Depends, 2)
}

func TestReadArtifactMetadata_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := ReadArtifactMetadata(path)
	require.Error(t, err)
}

func TestReadArtifactMetadata_RejectsNamelessIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noarch", "mystery-0-0.conda")
	writeCondaPackage(t, path, PackageMeta{Build: "0"})
	_, err := ReadArtifactMetadata(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing name or version")
}

func TestFindNewestArtifact_PicksLatestAcrossPlatformDirs(t *testing.T) {
	bld := t.TempDir()
	older := filepath.Join(bld, "linux-64", "behresp-0.3.0-py36_0.conda")
	newer := filepath.Join(bld, "noarch", "behresp-0.4.0-py36_0.conda")
	writeCondaPackage(t, older, PackageMeta{Name: "behresp", Version: "0.3.0", Build: "py36_0"})
	writeCondaPackage(t, newer, PackageMeta{Name: "behresp", Version: "0.4.0", Build: "py36_0"})

	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	got, err := findNewestArtifact(bld, "behresp")
	require.NoError(t, err)
	require.Equal(t, newer, got)

	_, err = findNewestArtifact(bld, "otherpkg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no package file")
}

func TestListArtifacts_OnePlatformDirDeep(t *testing.T) {
	bld := t.TempDir()
	want := filepath.Join(bld, "noarch", "a-1.0-0.conda")
	writeCondaPackage(t, want, PackageMeta{Name: "a", Version: "1.0"})
	// Top-level strays and deeper nesting are out of scope.
	require.NoError(t, os.WriteFile(filepath.Join(bld, "stray.conda"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(bld, "noarch", "sub"), 0o755))

	paths, err := listArtifacts(bld)
	require.NoError(t, err)
	require.Equal(t, []string{want}, paths)
}

func TestInspectArtifact_SizeAndDigest(t *testing.T) {
	bld := t.TempDir()
	path := filepath.Join(bld, "noarch", "a-1.0-0.conda")
	writeCondaPackage(t, path, PackageMeta{Name: "a", Version: "1.0", Build: "0"})

	art, err := inspectArtifact(path)
	require.NoError(t, err)
	require.Equal(t, "a", art.Meta.Name)
	require.Positive(t, art.Size)
	require.Len(t, art.B3Sum, 64)
}
