package locpak

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// handleExportCommand packs the latest run's artifact, report and build log
// into a single bundle for handing off or archiving.
func handleExportCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "gz", "bundle compression: gz, xz or zst")
	outDir := fs.String("o", ".", "output directory")
	fs.Parse(args)

	exts := map[string]string{"gz": ".tar.gz", "xz": ".tar.xz", "zst": ".tar.zst"}
	ext, ok := exts[*format]
	if !ok {
		return fmt.Errorf("unknown format %q (want gz, xz or zst)", *format)
	}

	l, err := openLedger(StateDir)
	if err != nil {
		return err
	}
	defer l.Close()

	last, err := l.Last()
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("no recorded runs; run a rebuild first")
	}

	var entries []bundleEntry

	artifact := last.Artifact
	if artifact != "" {
		if _, err := os.Stat(artifact); err != nil {
			cPrintf(colWarn, "Warning: recorded artifact %s is gone\n", artifact)
			artifact = ""
		}
	}
	if artifact == "" {
		if root, err := resolveBldRoot(); err == nil {
			artifact, _ = findNewestArtifact(root, last.Package)
		}
	}
	if artifact == "" {
		return fmt.Errorf("no artifact for %s to export", last.Package)
	}
	entries = append(entries, bundleEntry{Path: artifact, Name: filepath.Base(artifact)})

	reportPath := filepath.Join(StateDir, "reports", "build-"+last.ID+".json")
	if _, err := os.Stat(reportPath); err == nil {
		entries = append(entries, bundleEntry{Path: reportPath, Name: "report.json"})
	} else {
		cPrintf(colWarn, "Warning: no report for run %s\n", last.ID)
	}

	logPath := filepath.Join(StateDir, "logs", "build-"+last.ID+".log.xz")
	if _, err := os.Stat(logPath); err == nil {
		entries = append(entries, bundleEntry{Path: logPath, Name: "build.log.xz"})
	} else {
		cPrintf(colWarn, "Warning: no build log for run %s\n", last.ID)
	}

	dest := filepath.Join(*outDir, fmt.Sprintf("locpak-%s-%s%s", last.Package, last.Version, ext))
	colArrow.Print("-> ")
	colSuccess.Printf("Writing bundle %s\n", dest)
	if err := writeBundle(dest, entries); err != nil {
		return err
	}

	if info, err := os.Stat(dest); err == nil {
		colArrow.Print("-> ")
		colSuccess.Printf("Bundle ready: ")
		colNote.Printf("%s (%s)\n", dest, humanReadableSize(info.Size()))
	}
	return nil
}
