package locpak

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// compressXZ compresses a file using XZ.
func compressXZ(srcPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	xzWriter, err := xz.NewWriter(dest)
	if err != nil {
		return err
	}
	defer xzWriter.Close()

	_, err = io.Copy(xzWriter, src)
	return err
}

// readTarEntry scans a tar stream and returns the contents of the first
// regular file whose name matches want. Entry names may carry a leading
// "./" which is stripped before matching.
func readTarEntry(r io.Reader, want func(name string) bool) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar read: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if want(name) {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("no matching entry in archive")
}

// bundleEntry maps a file on disk to its name inside a bundle archive.
type bundleEntry struct {
	Path string
	Name string
}

// writeBundle creates a tar archive of entries at destPath, choosing the
// compression from the file extension (.tar.gz, .tar.xz or .tar.zst).
func writeBundle(destPath string, entries []bundleEntry) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}
	defer out.Close()

	var cw io.WriteCloser
	switch {
	case strings.HasSuffix(destPath, ".tar.gz"):
		cw = pgzip.NewWriter(out)
	case strings.HasSuffix(destPath, ".tar.xz"):
		cw, err = xz.NewWriter(out)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	case strings.HasSuffix(destPath, ".tar.zst"):
		cw, err = zstd.NewWriter(out)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported bundle format: %s", destPath)
	}

	tw := tar.NewWriter(cw)
	for _, e := range entries {
		if err := addBundleFile(tw, e.Path, e.Name); err != nil {
			tw.Close()
			cw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		cw.Close()
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return cw.Close()
}

// addBundleFile writes one regular file into the bundle under name.
// Entries are stored root-owned so bundles unpack the same everywhere.
func addBundleFile(tw *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "root", "root"
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to add %s to bundle: %w", name, err)
	}
	return nil
}
