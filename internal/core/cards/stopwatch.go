package cards

import (
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
)

// StopwatchCard counts up. One press starts or stops it, two or more clear it.
type StopwatchCard struct {
	base
	deps       Deps
	elapsed    int
	running    bool
	lastSecond time.Time
	presses    multiPress
}

func NewStopwatchCard(id, name string, deps Deps) *StopwatchCard {
	if name == "" {
		name = "Stopwatch"
	}
	return &StopwatchCard{
		base: base{id: id, name: name, kind: config.CardStopwatch},
		deps: deps,
	}
}

func (c *StopwatchCard) apply(n int, now time.Time) {
	switch {
	case n == 1:
		c.running = !c.running
		if c.running {
			c.lastSecond = now
		}
	case n >= 2:
		c.running = false
		c.elapsed = 0
	}
}

func (c *StopwatchCard) HandleButtonPress(btn input.Button) bool {
	if btn != input.Center {
		return false
	}
	now := c.deps.mono()
	c.apply(c.presses.press(now), now)
	return true
}

func (c *StopwatchCard) Update() bool {
	now := c.deps.mono()
	changed := false

	if n := c.presses.resolve(now); n > 0 {
		c.apply(n, now)
		changed = true
	}

	if c.running {
		for now.Sub(c.lastSecond) >= time.Second {
			c.lastSecond = c.lastSecond.Add(time.Second)
			c.elapsed++
			changed = true
		}
	}
	return changed
}

func (c *StopwatchCard) PrepareForRemoval() {}

func (c *StopwatchCard) Running() bool          { return c.running }
func (c *StopwatchCard) Elapsed() time.Duration { return time.Duration(c.elapsed) * time.Second }

func (c *StopwatchCard) View() display.View {
	return display.View{
		Title:  c.name,
		Lines:  []string{formatMinSec(c.elapsed)},
		Status: "start/stop  clear",
		Dim:    !c.running && c.elapsed > 0,
	}
}
