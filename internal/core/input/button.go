// Package input turns physical (or simulated) button presses into Button
// values for the UI loop.
package input

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/charleschow/deskcards/internal/telemetry"
)

type Button int

const (
	Up Button = iota
	Center
	Down
)

func (b Button) String() string {
	switch b {
	case Up:
		return "up"
	case Center:
		return "center"
	case Down:
		return "down"
	}
	return "unknown"
}

// ParseButton accepts the single-letter and full names ("u", "up", ...).
func ParseButton(s string) (Button, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "up", "k":
		return Up, true
	case "c", "center", "enter", " ":
		return Center, true
	case "d", "down", "j":
		return Down, true
	}
	return 0, false
}

// LineReader reads one button name per line, standing in for the GPIO
// buttons when running on a desktop.
type LineReader struct {
	r       io.Reader
	presses chan Button
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, presses: make(chan Button, 16)}
}

// Presses is closed when the reader hits EOF or ctx is cancelled.
func (lr *LineReader) Presses() <-chan Button { return lr.presses }

func (lr *LineReader) Run(ctx context.Context) {
	defer close(lr.presses)
	sc := bufio.NewScanner(lr.r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		btn, ok := ParseButton(line)
		if !ok {
			telemetry.Debugf("input: ignoring %q", line)
			continue
		}
		select {
		case lr.presses <- btn:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil {
		telemetry.Warnf("input: read: %v", err)
	}
}
