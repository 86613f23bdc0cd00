// Package navigation owns the UI loop: it ticks the cards, routes button
// presses, and draws the current card.
package navigation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const DefaultTickInterval = 100 * time.Millisecond

// Fetcher reads the stored configuration. It runs on the prefetch
// goroutine, never on the UI loop.
type Fetcher func(ctx context.Context) ([]config.CardConfig, error)

// Builder turns fetched configuration into cards on the UI loop.
type Builder func([]config.CardConfig) ([]cards.Card, error)

type Stack struct {
	renderer display.Renderer
	tick     time.Duration
	fetch    Fetcher
	build    Builder

	// UI loop only
	cards    []cards.Card
	current  int
	lastView display.View
	drawn    bool
	dirty    bool

	wake    chan struct{}
	fetched atomic.Pointer[[]config.CardConfig]
}

func NewStack(r display.Renderer, tick time.Duration) *Stack {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Stack{renderer: r, tick: tick, wake: make(chan struct{}, 1)}
}

// Attach subscribes to configuration changes. The callback only wakes the
// prefetch goroutine, which reads the store; the next tick builds the cards.
func (s *Stack) Attach(q interface{ Subscribe(events.Callback) }, fetch Fetcher, build Builder) {
	s.fetch = fetch
	s.build = build
	q.Subscribe(func(evt events.Event) {
		if evt.Kind != events.KindCardConfigChanged {
			return
		}
		select {
		case s.wake <- struct{}{}:
		default:
		}
	})
}

// prefetch reads the store after each change notification until ctx is done.
// Notifications that arrive during a read collapse into one more read.
func (s *Stack) prefetch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		cfgs, err := s.fetch(ctx)
		if err != nil {
			telemetry.Warnf("navigation: reload cards: %v", err)
			continue
		}
		s.fetched.Store(&cfgs)
	}
}

// Replace swaps the card list, keeping the current card if it survives.
func (s *Stack) Replace(next []cards.Card) {
	var curID string
	if c := s.Current(); c != nil {
		curID = c.ID()
	}

	keep := make(map[cards.Card]bool, len(next))
	for _, c := range next {
		keep[c] = true
	}
	for _, c := range s.cards {
		if !keep[c] {
			c.PrepareForRemoval()
		}
	}

	s.cards = next
	s.current = 0
	for i, c := range next {
		if curID != "" && c.ID() == curID {
			s.current = i
			break
		}
	}
	s.dirty = true
	telemetry.Metrics.ActiveCards.Set(int64(len(next)))
}

func (s *Stack) Cards() []cards.Card { return s.cards }

func (s *Stack) Current() cards.Card {
	if len(s.cards) == 0 {
		return nil
	}
	return s.cards[s.current]
}

func (s *Stack) CurrentIndex() int { return s.current }

// Next moves to the following card, wrapping after the last.
func (s *Stack) Next() {
	if len(s.cards) == 0 {
		return
	}
	s.current = (s.current + 1) % len(s.cards)
	s.dirty = true
}

// Prev moves to the previous card, wrapping before the first.
func (s *Stack) Prev() {
	if len(s.cards) == 0 {
		return
	}
	s.current = (s.current - 1 + len(s.cards)) % len(s.cards)
	s.dirty = true
}

// HandleButton gives the current card first refusal, then uses Up and Down
// for navigation.
func (s *Stack) HandleButton(btn input.Button) {
	if c := s.Current(); c != nil && c.HandleButtonPress(btn) {
		s.dirty = true
		return
	}
	switch btn {
	case input.Up:
		s.Prev()
	case input.Down:
		s.Next()
	}
}

// Tick runs one UI frame.
func (s *Stack) Tick() {
	if cfgs := s.fetched.Swap(nil); cfgs != nil && s.build != nil {
		next, err := s.build(*cfgs)
		if err != nil {
			telemetry.Warnf("navigation: build cards: %v", err)
		}
		if next != nil || err == nil {
			s.Replace(next)
		}
	}

	for i, c := range s.cards {
		if c.Update() && i == s.current {
			s.dirty = true
		}
	}
	s.draw()
}

func (s *Stack) draw() {
	if s.renderer == nil {
		return
	}
	c := s.Current()
	if c == nil {
		v := display.View{Title: "No cards", Lines: []string{"Add one with deskctl"}}
		if !s.drawn || !v.Equal(s.lastView) {
			s.render(v)
		}
		return
	}
	v := c.View()
	if s.drawn && !s.dirty && v.Equal(s.lastView) {
		return
	}
	s.render(v)
}

func (s *Stack) render(v display.View) {
	if err := s.renderer.Render(v); err != nil {
		telemetry.Warnf("navigation: %v", err)
		return
	}
	s.lastView = v
	s.drawn = true
	s.dirty = false
}

// Run is the UI loop. It returns when ctx is done; a closed presses channel
// only stops button handling.
func (s *Stack) Run(ctx context.Context, presses <-chan input.Button) {
	if s.fetch != nil {
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.prefetch(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case btn, ok := <-presses:
			if !ok {
				presses = nil
				continue
			}
			s.HandleButton(btn)
			s.draw()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Close detaches every card.
func (s *Stack) Close() {
	for _, c := range s.cards {
		c.PrepareForRemoval()
	}
}
