// Package output provides terminal output formatting utilities for the
// specrunner CLI. This package is designed to have minimal dependencies to
// avoid import cycles with internal/executor and internal/lifecycle.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// GetTerminalWidth returns the terminal width, defaulting to 80 if unavailable.
func GetTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// PrintTestOutputEnd prints a colored separator after a test's captured
// stdout/stderr ends, to visually set it apart from dispatcher output.
func PrintTestOutputEnd(out io.Writer, label string) {
	termWidth := GetTerminalWidth()
	magenta := color.New(color.FgMagenta, color.Faint).SprintFunc()

	tag := " " + label + " "
	lineLen := (termWidth - len(tag)) / 2
	if lineLen < 3 {
		lineLen = 3
	}

	line := strings.Repeat("─", lineLen)
	fmt.Fprintf(out, "\n%s%s%s\n", magenta(line), magenta(tag), magenta(line))
}

// PrintDispatch prints a line announcing a test has been dispatched.
func PrintDispatch(out io.Writer, label string, running, total int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	white := color.New(color.FgWhite).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", cyan(fmt.Sprintf("[%d/%d]", running, total)), white("→ "+label))
}

// PrintResult prints a colored one-line summary of a completed test result.
func PrintResult(out io.Writer, label string, passed bool, detail string) {
	mark := color.New(color.FgGreen, color.Bold).SprintFunc()("✓")
	msg := label
	if !passed {
		mark = color.New(color.FgRed, color.Bold).SprintFunc()("✗")
	}
	if detail != "" {
		msg = fmt.Sprintf("%s (%s)", label, detail)
	}
	fmt.Fprintf(out, "%s %s\n", mark, msg)
}

// PrintSectionHeader prints a colored section header (e.g. "Sweep results").
func PrintSectionHeader(out io.Writer, title string) {
	white := color.New(color.FgWhite, color.Bold).SprintFunc()
	fmt.Fprintf(out, "\n%s\n", white(title))
}
