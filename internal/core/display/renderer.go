package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/charleschow/deskcards/internal/telemetry"
)

// Renderer draws a card frame. Only the UI loop calls it.
type Renderer interface {
	Render(v View) error
}

// Pixel-to-cell scale for the terminal stand-in of the 240x135 panel.
const (
	pxPerCol = 8
	pxPerRow = 15
)

// TerminalRenderer draws cards as lipgloss boxes sized in proportion to the
// physical panel.
type TerminalRenderer struct {
	w     io.Writer
	style *Style
	cols  int
	rows  int
	clear bool
}

func NewTerminalRenderer(w io.Writer, style *Style, widthPx, heightPx int, clearScreen bool) *TerminalRenderer {
	cols := widthPx / pxPerCol
	rows := heightPx / pxPerRow
	if cols < 12 {
		cols = 12
	}
	if rows < 4 {
		rows = 4
	}
	return &TerminalRenderer{w: w, style: style, cols: cols, rows: rows, clear: clearScreen}
}

// Cols is the usable text width inside the frame.
func (r *TerminalRenderer) Cols() int { return r.cols }

func (r *TerminalRenderer) Render(v View) error {
	out := r.Frame(v)
	if r.clear {
		out = "\x1b[H\x1b[2J" + out
	}
	if _, err := fmt.Fprintln(r.w, out); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	telemetry.Metrics.Renders.Inc()
	return nil
}

// Frame builds the boxed text for v without writing it.
func (r *TerminalRenderer) Frame(v View) string {
	s := r.style
	var lines []string

	if v.Title != "" {
		lines = append(lines, s.Title.Render(Truncate(v.Title, r.cols)))
	}

	switch {
	case v.Error != "":
		lines = append(lines, s.Error.Render(Truncate(v.Error, r.cols)))
	default:
		body := s.Body
		if v.Dim {
			body = s.Muted
		}
		for _, l := range v.Lines {
			lines = append(lines, body.Render(Truncate(l, r.cols)))
		}
		if v.Status != "" {
			lines = append(lines, s.Status.Render(Truncate(v.Status, r.cols)))
		}
	}

	if v.ShowProgress {
		lines = append(lines, s.Bar.Render(progressBar(v.Progress, r.cols)))
	}

	if len(lines) > r.rows {
		lines = lines[:r.rows]
	}
	content := lipgloss.PlaceVertical(r.rows, lipgloss.Center, strings.Join(lines, "\n"))
	content = lipgloss.PlaceHorizontal(r.cols, lipgloss.Center, content)
	return s.Frame.Width(r.cols).Render(content)
}

func progressBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(p * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
