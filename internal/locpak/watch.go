package locpak

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchIgnored filters paths that churn during a build or never affect one:
// hidden entries (covers .git and the state dir), build residue, bytecode.
func watchIgnored(name string) bool {
	base := filepath.Base(name)
	if base != "." && strings.HasPrefix(base, ".") {
		return true
	}
	switch base {
	case "build", "dist", "__pycache__":
		return true
	}
	return strings.HasSuffix(base, ".egg-info") || strings.HasSuffix(base, ".pyc")
}

// addWatchTree registers root and every non-ignored directory below it.
func addWatchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; watch what we can.
			debugf("watch walk %s: %v\n", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && watchIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			debugf("watch add %s: %v\n", path, err)
		}
		return nil
	})
}

func relevantChange(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return !watchIgnored(event.Name)
}

// handleWatchCommand rebuilds whenever the source tree settles after a
// change. Failed rebuilds keep the watch alive.
func handleWatchCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := fs.Duration("debounce", 2*time.Second, "quiet period before a rebuild")
	fs.Parse(args)

	// Validate the recipe up front; each rebuild reloads it.
	if _, err := LoadRecipe(".", RecipeDir); err != nil {
		return fmt.Errorf("failed to load recipe: %v", err)
	}

	root, err := findRepoRoot(".")
	if err != nil {
		root = "."
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, root); err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Watching %s (rebuild after %s of quiet)\n", root, *debounce)

	mgr := NewCondaCLI(Exec)
	ctx := Exec.Context

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchTree(watcher, event.Name)
				}
			}
			debugf("Change: %s (%s)\n", event.Name, event.Op)
			if timer == nil {
				timer = time.NewTimer(*debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(*debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cPrintf(colWarn, "Warning: watcher error: %v\n", err)

		case <-timerC:
			timer = nil
			timerC = nil
			colArrow.Print("-> ")
			colSuccess.Println("Change settled; rebuilding")
			if _, err := runRebuild(".", mgr, RebuildOptions{}); err != nil {
				cPrintf(colError, "Rebuild failed: %v\n", err)
			}
		}
	}
}
