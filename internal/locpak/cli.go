package locpak

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/ulikunitz/xz"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: locpak <command> [arguments]")
	colSuccess.Println("Run 'locpak <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"rebuild, r", "[-v] [-recipe <dir>]", "Rebuild the package and install it into the active environment"},
		{"build, b", "[-v] [-recipe <dir>]", "Run the build only; leave the environment alone"},
		{"remove, rm", "[name]", "Uninstall the package (defaults to the recipe's name)"},
		{"status, st", "", "Show recipe, installed state, artifacts and residue"},
		{"artifact, a", "[path]", "Inspect the newest built package file (or the given one)"},
		{"log, l", "[runid]", "Show a build log (newest by default)"},
		{"history, hi", "[-n <count>]", "List recorded runs"},
		{"clean, c", "", "Purge the build cache and remove build residue"},
		{"doctor, d", "[-fix]", "Check the toolchain; -fix applies remediations"},
		{"watch, w", "[-debounce <dur>]", "Rebuild whenever the source tree settles after a change"},
		{"export, e", "[-format gz|xz|zst]", "Bundle the newest artifact, report and log"},
		{"upload, up", "[-cleanup] [-y]", "Push artifacts to the channel bucket and update its index"},
		{"version, v", "", "Version information"},
		{"help, h", "", "Show this help"},
	}

	// Find the longest usage string to calculate the first column's width.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))

		color.Info.Println(c.Desc)
	}

	fmt.Println()
}

// Main is the CLI entrypoint for cmd/locpak.
func Main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// 2. SIGNAL HANDLING GOROUTINE
	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					// Critical phase: block the 1st signal, force exit on the 2nd.
					colArrow.Print("\n-> ")
					colError.Printf("Critical operation in progress (install/remove). Press Ctrl+C AGAIN to force exit NOW.\n")

					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Printf("Forced immediate exit.")
						os.Exit(130)
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					// Non-critical phase: graceful cancellation.
					colArrow.Print("\n-> ")
					color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
					cancel()

					// Give the command a moment to die and flush its buffers.
					time.Sleep(100 * time.Millisecond)

					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(2 * time.Second):
						color.Danger.Printf("Graceful shutdown timeout. Exiting.")
						os.Exit(0)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// 3. MAIN LOGIC
	if ctx.Err() != nil {
		return
	}

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	ConfigFile = findConfigFile()
	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config %s: %v\n", ConfigFile, err)
	}
	initConfig(cfg)

	Exec = NewExecutor(ctx)

	var exitCode int

	switch os.Args[1] {
	case "rebuild", "r":
		if err := handleRebuildCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
			os.Exit(1)
		}

	case "build", "b":
		if err := handleBuildCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
			os.Exit(1)
		}

	case "remove", "rm":
		if err := handleRemoveCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
			os.Exit(1)
		}

	case "status", "st":
		if err := handleStatusCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "artifact", "a":
		if err := handleArtifactCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Artifact inspection failed: %v\n", err)
			os.Exit(1)
		}

	case "log", "l":
		if err := handleLogCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Log failed: %v\n", err)
			os.Exit(1)
		}

	case "history", "hi":
		if err := handleHistoryCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			os.Exit(1)
		}

	case "clean", "c":
		if err := handleCleanCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Clean failed: %v\n", err)
			os.Exit(1)
		}

	case "doctor", "d":
		if err := handleDoctorCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Doctor: %v\n", err)
			os.Exit(1)
		}

	case "watch", "w":
		if err := handleWatchCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
			os.Exit(1)
		}

	case "export", "e":
		if err := handleExportCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}

	case "upload", "up":
		if err := handleUploadCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}

	case "version", "v", "--version":
		colNote.Printf("locpak %s (%s) built %s\n", version, arch, buildDate)

	case "help", "h", "--help":
		printHelp()

	default:
		printHelp()
		exitCode = 1
	}
	os.Exit(exitCode)
}

// handleLogCommand decompresses a build log and shows it through the pager.
// Without a run id the newest log wins.
func handleLogCommand(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	fs.Parse(args)

	logDir := filepath.Join(StateDir, "logs")
	var logPath string
	if fs.NArg() > 0 {
		logPath = filepath.Join(logDir, "build-"+fs.Arg(0)+".log.xz")
	} else {
		matches, err := filepath.Glob(filepath.Join(logDir, "build-*.log.xz"))
		if err != nil || len(matches) == 0 {
			return fmt.Errorf("no build logs under %s", logDir)
		}
		var newestMod time.Time
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if logPath == "" || info.ModTime().After(newestMod) {
				logPath = m
				newestMod = info.ModTime()
			}
		}
	}

	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("no build log at %s", logPath)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}
	data, err := io.ReadAll(xr)
	if err != nil {
		return fmt.Errorf("failed to decompress log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return runPager(filepath.Base(logPath), lines)
}
