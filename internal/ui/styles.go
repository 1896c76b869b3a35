// Package ui renders styled terminal output for the tix shell.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue: held tickets, headers
	colorOK     = 71  // green: success lines
	colorError  = 167 // red
	colorMuted  = 245 // gray: finished events
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderOK returns s in the success color.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderError returns s in the error color.
func RenderError(s string) string { return paint(colorError, s) }

// RenderMuted returns s in the muted color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ColorEnabled reports whether Render* functions emit escape codes.
func ColorEnabled() bool { return !noColor }
