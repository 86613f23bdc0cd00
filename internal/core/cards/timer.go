package cards

import (
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
)

// TimerCard is a countdown set with the centre button:
// one press adds a minute, two add ten, three or more clear it.
type TimerCard struct {
	base
	deps       Deps
	remaining  int // seconds
	lastSecond time.Time
	presses    multiPress
	finished   bool
}

func NewTimerCard(id, name string, deps Deps) *TimerCard {
	if name == "" {
		name = "Timer"
	}
	return &TimerCard{
		base:       base{id: id, name: name, kind: config.CardTimer},
		deps:       deps,
		lastSecond: deps.mono(),
	}
}

func (c *TimerCard) apply(n int) {
	switch {
	case n == 1:
		c.remaining += 60
	case n == 2:
		c.remaining += 10 * 60
	case n >= 3:
		c.remaining = 0
	default:
		return
	}
	c.finished = false
}

func (c *TimerCard) HandleButtonPress(btn input.Button) bool {
	if btn != input.Center {
		return false
	}
	c.apply(c.presses.press(c.deps.mono()))
	return true
}

func (c *TimerCard) Update() bool {
	now := c.deps.mono()
	changed := false

	if n := c.presses.resolve(now); n > 0 {
		c.apply(n)
		changed = true
	}

	for now.Sub(c.lastSecond) >= time.Second {
		c.lastSecond = c.lastSecond.Add(time.Second)
		if c.remaining > 0 {
			c.remaining--
			changed = true
			if c.remaining == 0 {
				c.finished = true
			}
		}
	}
	return changed
}

func (c *TimerCard) PrepareForRemoval() {}

func (c *TimerCard) Remaining() time.Duration { return time.Duration(c.remaining) * time.Second }

func (c *TimerCard) View() display.View {
	v := display.View{
		Title:  c.name,
		Lines:  []string{formatMinSec(c.remaining)},
		Status: "+1m  +10m  clear",
	}
	if c.finished {
		v.Status = "Time's up"
	}
	return v
}
