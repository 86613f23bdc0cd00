// Package display is the drawing surface the UI loop renders cards onto.
//
// Cards describe what they want on screen as a View, a plain value built on
// the UI goroutine. Nothing outside the UI loop ever holds a View or a
// Renderer, which keeps the widget side single-threaded.
package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View is one frame of a card.
type View struct {
	Title string
	Lines []string

	// Status is a transient hint such as "Connecting..." or "Retry 2/5".
	Status string

	// Error replaces the body while set.
	Error string

	// Progress in [0,1], drawn as a bar when ShowProgress is set.
	Progress     float64
	ShowProgress bool

	// Dim renders the body in the muted colour (stopped stopwatch).
	Dim bool
}

// Equal reports whether two views would draw identically.
func (v View) Equal(o View) bool {
	if v.Title != o.Title || v.Status != o.Status || v.Error != o.Error ||
		v.ShowProgress != o.ShowProgress || v.Dim != o.Dim || len(v.Lines) != len(o.Lines) {
		return false
	}
	if v.ShowProgress && v.Progress != o.Progress {
		return false
	}
	for i := range v.Lines {
		if v.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}

// Truncate shortens s to at most maxCols display cells, ending in "..." when
// anything was cut.
func Truncate(s string, maxCols int) string {
	if maxCols <= 0 || s == "" {
		return ""
	}
	if lipgloss.Width(s) <= maxCols {
		return s
	}
	const ellipsis = "..."
	if maxCols <= len(ellipsis) {
		return strings.Repeat(".", maxCols)
	}

	runes := []rune(s)
	// binary search for the longest prefix that fits with the ellipsis
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lipgloss.Width(string(runes[:mid])+ellipsis) <= maxCols {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo]) + ellipsis
}
