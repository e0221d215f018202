package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorOpen   = 114 // green
	colorClosed = 245 // gray
	colorWarn   = 179 // amber
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderID returns an entity id in the accent color.
func RenderID(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted color.
func RenderMuted(s string) string { return paint(colorClosed, s) }

// RenderStatus colors a bead status: open green, closed gray, anything else amber.
func RenderStatus(s string) string {
	switch s {
	case "open":
		return paint(colorOpen, s)
	case "closed":
		return paint(colorClosed, s)
	}
	return paint(colorWarn, s)
}

// SetColor turns color output on or off globally.
func SetColor(on bool) {
	noColor = !on
}

// ColorEnabled reports whether output written to w should be colored.
// KQ_COLOR=always|never overrides detection; otherwise NO_COLOR and
// CLICOLOR_FORCE apply, then w must be a terminal.
func ColorEnabled(w io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("KQ_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
