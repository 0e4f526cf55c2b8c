package locpak

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

const channelIndexKey = "channel-index.json"

// ChannelEntry is one artifact in the channel index.
type ChannelEntry struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Build       string `json:"build"`
	BuildNumber int    `json:"build_number"`
	Subdir      string `json:"subdir"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	B3Sum       string `json:"b3sum"`
}

// Key is the object key inside the bucket. Conda channels shelve packages
// per platform directory.
func (e ChannelEntry) Key() string {
	if e.Subdir == "" {
		return e.Filename
	}
	return path.Join(e.Subdir, e.Filename)
}

// ParseChannelIndex decodes channel-index.json.
func ParseChannelIndex(data []byte) ([]ChannelEntry, error) {
	var index []ChannelEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse channel index: %w", err)
	}
	return index, nil
}

// isNewer returns true if a supersedes b.
func isNewer(a, b ChannelEntry) bool {
	cmp := compareVersions(a.Version, b.Version)
	if cmp > 0 {
		return true
	}
	if cmp < 0 {
		return false
	}
	return a.BuildNumber > b.BuildNumber
}

// scanLocalArtifacts inspects the build cache's package files for pkgName
// concurrently and returns one entry per readable artifact.
func scanLocalArtifacts(bldDir, pkgName string) ([]ChannelEntry, error) {
	paths, err := listArtifacts(bldDir)
	if err != nil {
		return nil, err
	}

	found := make([]*ChannelEntry, len(paths))
	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			art, err := inspectArtifact(p)
			if err != nil {
				debugf("Warning: skipping %s: %v\n", p, err)
				return nil
			}
			if art.Meta.Name != pkgName {
				return nil
			}
			found[i] = &ChannelEntry{
				Name:        art.Meta.Name,
				Version:     art.Meta.Version,
				Build:       art.Meta.Build,
				BuildNumber: art.Meta.BuildNumber,
				Subdir:      art.Meta.Subdir,
				Filename:    filepath.Base(p),
				Size:        art.Size,
				B3Sum:       art.B3Sum,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []ChannelEntry
	for _, e := range found {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// resolveBldRoot locates the conda build cache without invoking the
// manager: explicit configuration first, then the newest ledger row's
// artifact location.
func resolveBldRoot() (string, error) {
	if BldDir != "" {
		return BldDir, nil
	}
	l, err := openLedger(StateDir)
	if err == nil {
		defer l.Close()
		if last, err := l.Last(); err == nil && last != nil && last.Artifact != "" {
			return filepath.Dir(filepath.Dir(last.Artifact)), nil
		}
	}
	return "", fmt.Errorf("build cache location unknown; set LOCPAK_BLD_DIR (or export CONDA_BLD_PATH)")
}

// handleUploadCommand implements the 'locpak upload' command.
func handleUploadCommand(args []string, cfg *Config) error {
	ctx := context.Background()

	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	cleanup := fs.Bool("cleanup", false, "delete superseded artifacts from the channel")
	assumeYes := fs.Bool("y", false, "answer yes to every prompt")
	fs.Parse(args)

	rec, err := LoadRecipe(".", RecipeDir)
	if err != nil {
		return fmt.Errorf("failed to load recipe: %v", err)
	}

	client, err := NewChannelClient(cfg)
	if err != nil {
		return err
	}

	confirm := func(p colorPrinter, format string, a ...interface{}) bool {
		if *assumeYes {
			return true
		}
		return askForConfirmation(p, format, a...)
	}

	// Fetch the remote index. A channel that has never been written to
	// simply has none yet.
	colArrow.Print("-> ")
	colSuccess.Println("Fetching channel index")
	var remoteIndex []ChannelEntry
	if data, err := client.DownloadFile(ctx, channelIndexKey); err != nil {
		debugf("Channel index not found or error fetching: %v\n", err)
	} else {
		remoteIndex, err = ParseChannelIndex(data)
		if err != nil {
			return err
		}
	}

	bldRoot, err := resolveBldRoot()
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Scanning local artifacts in %s\n", bldRoot)
	locals, err := scanLocalArtifacts(bldRoot, rec.Package.Name)
	if err != nil {
		return err
	}
	if len(locals) == 0 {
		return fmt.Errorf("no artifacts for %s under %s; run a build first", rec.Package.Name, bldRoot)
	}

	// Keep only the newest artifact per platform.
	latestLocals := make(map[string]ChannelEntry) // key: name-subdir
	for _, entry := range locals {
		key := fmt.Sprintf("%s-%s", entry.Name, entry.Subdir)
		if existing, ok := latestLocals[key]; !ok || isNewer(entry, existing) {
			latestLocals[key] = entry
		}
	}

	newIndexMap := make(map[string]ChannelEntry)
	for _, entry := range remoteIndex {
		newIndexMap[fmt.Sprintf("%s-%s", entry.Name, entry.Subdir)] = entry
	}

	var sortedKeys []string
	for k := range latestLocals {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	var uploadedCount int
	for _, key := range sortedKeys {
		local := latestLocals[key]
		remote, exists := newIndexMap[key]

		needsUpload := !exists || isNewer(local, remote) || local.B3Sum != remote.B3Sum
		if !needsUpload {
			continue
		}

		colArrow.Print("-> ")
		if !confirm(colWarn, "Upload %s %s (%s, %s)? ", local.Name, local.Version, local.Build, local.Subdir) {
			continue
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", local.Key())
		localPath := filepath.Join(bldRoot, local.Subdir, local.Filename)
		if err := client.UploadLocalFile(ctx, local.Key(), localPath); err != nil {
			return fmt.Errorf("failed to upload %s: %w", local.Filename, err)
		}

		newIndexMap[key] = local
		uploadedCount++
	}

	// Drop superseded files from the bucket.
	if *cleanup {
		colArrow.Print("-> ")
		colSuccess.Println("Checking the channel for superseded artifacts")
		remoteObjects, err := client.ListObjects(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list channel objects: %w", err)
		}

		activeKeys := make(map[string]bool)
		for _, entry := range newIndexMap {
			activeKeys[entry.Key()] = true
		}
		activeKeys[channelIndexKey] = true

		var deletedCount int
		for _, obj := range remoteObjects {
			if activeKeys[obj.Key] || !isArtifactPath(obj.Key) {
				continue
			}
			colArrow.Print("-> ")
			if confirm(colError, "Delete superseded artifact %s? ", obj.Key) {
				if err := client.DeleteFile(ctx, obj.Key); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to delete %s: %v\n", obj.Key, err)
				} else {
					deletedCount++
				}
			}
		}
		if deletedCount > 0 {
			colSuccess.Printf("Cleanup complete. Deleted %d superseded files.\n", deletedCount)
		}
	}

	// Storage report.
	colArrow.Print("-> ")
	colSuccess.Println("Calculating storage usage")
	if allObjects, err := client.ListObjects(ctx, ""); err == nil {
		var totalSize int64
		for _, obj := range allObjects {
			totalSize += obj.Size
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Channel holds ")
		colNote.Printf("%d objects, %s\n", len(allObjects), humanReadableSize(totalSize))
	}

	if uploadedCount == 0 && !*cleanup {
		colArrow.Print("-> ")
		colSuccess.Println("Everything up to date.")
		return nil
	}

	// Rewrite the index to match what the bucket now holds.
	colArrow.Print("-> ")
	colSuccess.Println("Updating channel index")
	var finalIndex []ChannelEntry
	for _, entry := range newIndexMap {
		finalIndex = append(finalIndex, entry)
	}
	sort.Slice(finalIndex, func(i, j int) bool {
		a, b := finalIndex[i], finalIndex[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Subdir != b.Subdir {
			return a.Subdir < b.Subdir
		}
		return compareVersions(a.Version, b.Version) < 0
	})

	indexBytes, err := json.MarshalIndent(finalIndex, "", "  ")
	if err != nil {
		return err
	}
	if err := client.UploadFile(ctx, channelIndexKey, indexBytes); err != nil {
		return fmt.Errorf("failed to upload channel index: %w", err)
	}
	colSuccess.Printf("Sync complete. %d new uploads.\n", uploadedCount)
	return nil
}
