package locpak

import (
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"
)

// runPager shows lines in a scrollable view when they overflow the
// terminal. Short output, or output that is being piped, is printed
// straight through.
func runPager(title string, lines []string) error {
	if fitsTerminal(len(lines)) {
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}
	return runPagerUI(title, lines)
}

func fitsTerminal(n int) bool {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return true
	}
	_, height, err := term.GetSize(fd)
	if err != nil {
		return true
	}
	// Two rows go to the view border.
	return n <= height-2
}

func runPagerUI(title string, lines []string) error {
	app := tview.NewApplication()

	text := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	text.SetBorder(true).SetTitle(" " + title + " ")

	// Route through the ANSI writer so colored output renders.
	fmt.Fprint(tview.ANSIWriter(text), strings.Join(lines, "\n"))

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]Scroll with ↑/↓ and PgUp/PgDn. Press 'q' or 'Esc' to quit.[white]")

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(text, 0, 1, true).
		AddItem(footer, 1, 0, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyEsc, tcell.KeyCtrlQ:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if ev.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return ev
	})

	if err := app.SetRoot(layout, true).SetFocus(text).Run(); err != nil {
		return fmt.Errorf("pager execution failed: %w", err)
	}
	return nil
}
