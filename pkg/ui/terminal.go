package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Banner is printed at the start of an interactive run
const Banner = `
  ┌─┐┌─┐┬─┐┬ ┬┌┬┐┌─┐┌─┐┬─┐┌─┐┌─┐┌─┐┬─┐
  ├┤ │ │├┬┘│ ││││└─┐│  ├┬┘├─┤├─┘├┤ ├┬┘
  └  └─┘┴└─└─┘┴ ┴└─┘└─┘┴└─┴ ┴┴  └─┘┴└─
`

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

var colorEnabled = os.Getenv("NO_COLOR") == ""

// Color functions for terminal output
var (
	Cyan    = colorize(lipgloss.NewStyle().Foreground(lipgloss.Color("6")))
	Yellow  = colorize(lipgloss.NewStyle().Foreground(lipgloss.Color("3")))
	Red     = colorize(lipgloss.NewStyle().Foreground(lipgloss.Color("1")))
	Green   = colorize(lipgloss.NewStyle().Foreground(lipgloss.Color("2")))
	Magenta = colorize(lipgloss.NewStyle().Foreground(lipgloss.Color("5")))
	Dim     = colorize(lipgloss.NewStyle().Faint(true))
	Bold    = colorize(lipgloss.NewStyle().Bold(true))
)

// SetColor turns colors on or off for every color function
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// colorize returns a function that renders text with the given style
func colorize(style lipgloss.Style) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return style.Render(text)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// PrintBanner prints the banner with color
func PrintBanner() {
	fmt.Fprint(Out, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, err error) {
	if err != nil {
		fmt.Fprintln(Out, Red(msg+": "+err.Error()))
		return
	}
	fmt.Fprintln(Out, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string) {
	fmt.Fprintln(Out, Yellow(msg))
}
