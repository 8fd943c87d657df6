package ui

import (
	"os"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/term"
)

// Interactive reports whether stderr is a terminal, where spinners make sense.
func Interactive() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// fit shortens msg to a single line of the terminal, so that the spinner
// does not wrap.
func fit(msg string) string {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return msg
	}
	// Room for the spinner character
	return truncate(msg, width-2)
}

func truncate(msg string, width int) string {
	if width <= 0 || uniseg.GraphemeClusterCount(msg) <= width {
		return msg
	}

	var b strings.Builder
	graphemes := uniseg.NewGraphemes(msg)
	for count := 1; count < width && graphemes.Next(); count++ {
		b.WriteString(graphemes.Str())
	}
	b.WriteString("…")
	return b.String()
}
