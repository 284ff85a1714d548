package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════╗
    ║  ██████╗ ██╗     ██╗███╗   ██╗██╗  ██╗            ║
    ║  ██╔══██╗██║     ██║████╗  ██║██║ ██╔╝            ║
    ║  ██████╔╝██║     ██║██╔██╗ ██║█████╔╝   sync      ║
    ║  ██╔══██╗██║     ██║██║╚██╗██║██╔═██╗             ║
    ║  ██████╔╝███████╗██║██║ ╚████║██║  ██╗            ║
    ║  ╚═════╝ ╚══════╝╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝            ║
    ║        camera clip and thumbnail mirror           ║
    ╚═══════════════════════════════════════════════════╝
`

// Output destinations; tests swap them for buffers
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// NoColor disables ANSI colours. It starts out set when stdout is not a
// terminal or NO_COLOR is present.
var NoColor = os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd()))

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if NoColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Fprint(Stdout, Cyan(ASCIILogo))
}

// PrintError prints an error message in red on stderr
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Stderr, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Stderr, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Stdout, Green(msg))
}

// PrintInfo prints a label and its value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Stdout, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow on stderr
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Stderr, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Stderr, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Stdout, Magenta(msg))
}

// PrintDim prints secondary text
func PrintDim(msg string) {
	fmt.Fprintln(Stdout, Dim(msg))
}
