package cards

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards/async"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
)

// Width of the progress track in pixels: the 240px panel minus the 3px marker.
const progressTrackPx = 237

func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// YearProgress is the fraction of t's year that has elapsed, to the second.
func YearProgress(t time.Time) float64 {
	days := 365
	if IsLeapYear(t.Year()) {
		days = 366
	}
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return (float64(t.YearDay()-1) + float64(secs)/86400) / float64(days)
}

// ProgressX is the marker position on the panel for progress p.
func ProgressX(p float64) int { return int(p * progressTrackPx) }

type YearProgressCard struct {
	base
	deps   Deps
	loc    *time.Location
	sync   *async.Updater
	synced bool
	shownX int
}

func NewYearProgressCard(id, name, subject string, tz config.Timezone, deps Deps) (*YearProgressCard, error) {
	if name == "" {
		name = "Year Progress"
	}
	u, err := newTimeSyncUpdater(subject, tz, deps)
	if err != nil {
		return nil, err
	}
	c := &YearProgressCard{
		base:   base{id: id, name: name, kind: config.CardYearProgress},
		deps:   deps,
		loc:    tz.Load(),
		sync:   u,
		shownX: -1,
	}
	if deps.Queue != nil {
		u.Attach(deps.Queue)
	}
	return c, nil
}

func (c *YearProgressCard) Update() bool {
	changed := false
	if out := c.sync.Tick(func(any) { c.synced = true }); out == async.OutcomeApplied || out == async.OutcomeError {
		changed = true
	}
	if x := ProgressX(c.progress()); x != c.shownX {
		c.shownX = x
		changed = true
	}
	return changed
}

func (c *YearProgressCard) progress() float64 {
	return YearProgress(c.deps.now().In(c.loc))
}

func (c *YearProgressCard) HandleButtonPress(input.Button) bool { return false }

func (c *YearProgressCard) PrepareForRemoval() { c.sync.Close() }

func (c *YearProgressCard) Synced() bool { return c.synced }

func (c *YearProgressCard) View() display.View {
	now := c.deps.now().In(c.loc)
	p := YearProgress(now)
	v := display.View{
		Title:        strconv.Itoa(now.Year()),
		Lines:        []string{fmt.Sprintf("%.1f%%", p*100)},
		Progress:     p,
		ShowProgress: true,
	}
	if !c.synced && c.sync.ErrorShown() {
		v.Status = MsgCannotSync
	}
	return v
}
