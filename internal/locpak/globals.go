package locpak

import (
	"runtime"
	"sync/atomic"

	"github.com/gookit/color"
)

// GLOBAL STATE
// A value of 1 marks a critical section (install/remove in flight), 0 otherwise.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	CondaBin   string
	PythonPin  string
	RecipeDir  string // explicit recipe dir; empty means search the usual spots
	StateDir   string
	BldDir     string // artifact search root override; empty means ask the manager
	EggInfoDir string // metadata dir override; empty means derive from the recipe
	Debug      bool
	Verbose    bool
	ConfigFile string // resolved at startup
	version    = "dev" // default version; overridden at build time
	arch       = runtime.GOARCH
	buildDate  = "unknown" // overridden at build time
	// Global executor (assigned in Main)
	Exec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
