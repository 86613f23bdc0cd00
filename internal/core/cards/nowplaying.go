package cards

import (
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards/async"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
	"github.com/charleschow/deskcards/internal/events"
)

const NowPlayingInterval = 30 * time.Second

// NowPlayingCard shows the latest scrobbled track for a Last.fm user.
type NowPlayingCard struct {
	base
	deps     Deps
	username string
	updater  *async.Updater
	data     *events.NowPlaying
}

func NewNowPlayingCard(id, name, subject, username string, deps Deps) (*NowPlayingCard, error) {
	if name == "" {
		name = "Now Playing"
	}
	c := &NowPlayingCard{
		base:     base{id: id, name: name, kind: config.CardNowPlaying},
		deps:     deps,
		username: username,
	}
	u, err := async.New(async.Config{
		Subject:      subject,
		RequestKind:  events.KindNowPlayingRequest,
		ResponseKind: events.KindNowPlayingDataReceived,
		Interval:     NowPlayingInterval,
		Ready:        deps.Ready,
		BuildRequest: func() string { return c.username },
		Parse: func(evt events.Event) (any, error) {
			return events.DecodeNowPlaying(evt.Payload)
		},
		Now: deps.now,
	})
	if err != nil {
		return nil, err
	}
	c.updater = u
	if deps.Queue != nil {
		u.Attach(deps.Queue)
	}
	return c, nil
}

func (c *NowPlayingCard) Update() bool {
	out := c.updater.Tick(func(r any) {
		np := r.(events.NowPlaying)
		c.data = &np
	})
	return out != async.OutcomeNone && out != async.OutcomeRequested
}

func (c *NowPlayingCard) HandleButtonPress(btn input.Button) bool {
	if btn != input.Center {
		return false
	}
	c.updater.Refresh()
	return true
}

func (c *NowPlayingCard) PrepareForRemoval() { c.updater.Close() }

func (c *NowPlayingCard) Data() (events.NowPlaying, bool) {
	if c.data == nil {
		return events.NowPlaying{}, false
	}
	return *c.data, true
}

func (c *NowPlayingCard) truncate(s string) string {
	if c.deps.TextCols <= 0 {
		return s
	}
	return display.Truncate(s, c.deps.TextCols)
}

func (c *NowPlayingCard) View() display.View {
	v := display.View{Title: "Loading..."}
	if c.data != nil {
		np := c.data
		v.Title = c.truncate(np.Title)
		v.Lines = []string{c.truncate(np.Artist), c.truncate(np.Album), np.PlayedAt}
	}
	if s := c.updater.StatusText(); s != "" {
		v.Title = s
	}
	if e := c.updater.ErrorText(); e != "" {
		v.Error = e
		v.Title = ""
	}
	return v
}
