package cards

import (
	"fmt"
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards/async"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
	"github.com/charleschow/deskcards/internal/events"
)

const (
	TimeSyncInterval = 5 * time.Minute
	MsgCannotSync    = "Cannot sync time"
)

// ClockCard shows the time in one zone and keeps the clock synced.
type ClockCard struct {
	base
	deps   Deps
	tz     config.Timezone
	loc    *time.Location
	sync   *async.Updater
	synced bool

	shown string // last rendered minute, to detect change
}

func NewClockCard(id, name, subject string, tz config.Timezone, deps Deps) (*ClockCard, error) {
	if name == "" {
		name = tz.Name
	}
	c := &ClockCard{
		base: base{id: id, name: name, kind: config.CardClock},
		deps: deps,
		tz:   tz,
		loc:  tz.Load(),
	}
	u, err := newTimeSyncUpdater(subject, tz, deps)
	if err != nil {
		return nil, err
	}
	c.sync = u
	if deps.Queue != nil {
		u.Attach(deps.Queue)
	}
	return c, nil
}

func newTimeSyncUpdater(subject string, tz config.Timezone, deps Deps) (*async.Updater, error) {
	req := events.TimeSyncRequest{Zone: tz.Name, UTCOffsetHours: tz.UTCOffsetHours}
	return async.New(async.Config{
		Subject:      subject,
		RequestKind:  events.KindTimeSyncRequest,
		ResponseKind: events.KindTimeSyncComplete,
		Interval:     TimeSyncInterval,
		Ready:        deps.Ready,
		BuildRequest: req.Encode,
		EmptyOK:      true,
		Now:          deps.now,
	})
}

func (c *ClockCard) Update() bool {
	changed := false
	switch c.sync.Tick(func(any) { c.synced = true }) {
	case async.OutcomeApplied, async.OutcomeError, async.OutcomeRetrying:
		changed = true
	}
	if s := c.timeText(); s != c.shown {
		c.shown = s
		changed = true
	}
	return changed
}

func (c *ClockCard) HandleButtonPress(input.Button) bool { return false }

func (c *ClockCard) PrepareForRemoval() { c.sync.Close() }

// Synced reports whether a time sync has ever succeeded.
func (c *ClockCard) Synced() bool { return c.synced }

// SyncError is the error currently shown, if any.
func (c *ClockCard) SyncError() string {
	if c.synced || !c.sync.ErrorShown() {
		return ""
	}
	return MsgCannotSync
}

func (c *ClockCard) timeText() string {
	return c.deps.now().In(c.loc).Format("3:04")
}

func (c *ClockCard) View() display.View {
	now := c.deps.now().In(c.loc)
	v := display.View{
		Title: c.tz.Name,
		Lines: []string{now.Format("3:04"), now.Format("PM"), now.Format("Jan 2")},
	}
	if msg := c.SyncError(); msg != "" {
		v.Status = msg
	} else if !c.synced {
		v.Status = c.sync.StatusText()
	}
	return v
}

func formatClock(a, b int) string { return fmt.Sprintf("%d:%02d", a, b) }
