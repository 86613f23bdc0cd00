package navigation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

func init() {
	telemetry.InitWriter(io.Discard, slog.LevelError)
}

type fakeCard struct {
	id      string
	consume bool
	pressed []input.Button
	updates int
	text    string
	changed bool
	removed bool
}

func (f *fakeCard) ID() string            { return f.id }
func (f *fakeCard) Name() string          { return f.id }
func (f *fakeCard) Kind() config.CardType { return config.CardTimer }
func (f *fakeCard) Update() bool {
	f.updates++
	c := f.changed
	f.changed = false
	return c
}
func (f *fakeCard) HandleButtonPress(btn input.Button) bool {
	f.pressed = append(f.pressed, btn)
	return f.consume && btn == input.Center
}
func (f *fakeCard) View() display.View { return display.View{Title: f.id, Lines: []string{f.text}} }
func (f *fakeCard) PrepareForRemoval() { f.removed = true }

type recordRenderer struct {
	mu    sync.Mutex
	views []display.View
}

func (r *recordRenderer) Render(v display.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func (r *recordRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordRenderer) last() display.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func threeCards() (*fakeCard, *fakeCard, *fakeCard) {
	return &fakeCard{id: "a", consume: true}, &fakeCard{id: "b"}, &fakeCard{id: "c"}
}

func TestStack_NavigationWraps(t *testing.T) {
	a, b, c := threeCards()
	s := NewStack(nil, 0)
	s.Replace([]cards.Card{a, b, c})

	s.HandleButton(input.Up)
	assert.Equal(t, "c", s.Current().ID())
	s.HandleButton(input.Down)
	assert.Equal(t, "a", s.Current().ID())
	s.HandleButton(input.Down)
	s.HandleButton(input.Down)
	s.HandleButton(input.Down)
	assert.Equal(t, "a", s.Current().ID())
}

func TestStack_CurrentCardGetsFirstRefusal(t *testing.T) {
	a, b, c := threeCards()
	s := NewStack(nil, 0)
	s.Replace([]cards.Card{a, b, c})

	s.HandleButton(input.Center)
	assert.Equal(t, []input.Button{input.Center}, a.pressed)
	assert.Equal(t, "a", s.Current().ID())

	s.HandleButton(input.Down)
	assert.Equal(t, []input.Button{input.Center, input.Down}, a.pressed)
	assert.Equal(t, "b", s.Current().ID())
	assert.Empty(t, b.pressed)
}

func TestStack_TickUpdatesEveryCardAndRendersOnChange(t *testing.T) {
	a, b, c := threeCards()
	r := &recordRenderer{}
	s := NewStack(r, 0)
	s.Replace([]cards.Card{a, b, c})

	s.Tick()
	assert.Equal(t, 1, r.count())
	s.Tick()
	assert.Equal(t, 1, r.count(), "unchanged view is not redrawn")
	assert.Equal(t, 2, a.updates)
	assert.Equal(t, 2, c.updates)

	a.text = "new"
	a.changed = true
	s.Tick()
	assert.Equal(t, 2, r.count())
	assert.Equal(t, []string{"new"}, r.last().Lines)

	// a background card changing does not redraw
	b.text = "x"
	b.changed = true
	s.Tick()
	assert.Equal(t, 2, r.count())

	s.HandleButton(input.Down)
	s.Tick()
	assert.Equal(t, "b", r.last().Title)
}

func TestStack_ReplaceKeepsCurrentAndReleasesRemoved(t *testing.T) {
	a, b, c := threeCards()
	s := NewStack(nil, 0)
	s.Replace([]cards.Card{a, b, c})
	s.Next()
	s.Next()

	d := &fakeCard{id: "d"}
	s.Replace([]cards.Card{d, c})
	assert.Equal(t, "c", s.Current().ID())
	assert.True(t, a.removed)
	assert.True(t, b.removed)
	assert.False(t, c.removed)
	assert.Equal(t, int64(2), telemetry.Metrics.ActiveCards.Value())
}

func TestStack_EmptyStack(t *testing.T) {
	r := &recordRenderer{}
	s := NewStack(r, 0)
	s.HandleButton(input.Down)
	s.Tick()
	assert.Nil(t, s.Current())
	require.Equal(t, 1, r.count())
	assert.Equal(t, "No cards", r.last().Title)
}

func TestStack_ConfigChangeFetchesOffTheUILoop(t *testing.T) {
	q := events.NewQueue(events.DefaultCapacity)
	a, b, _ := threeCards()
	s := NewStack(nil, 0)
	s.Replace([]cards.Card{a})

	var fetches atomic.Int32
	builds := 0
	s.Attach(q, func(context.Context) ([]config.CardConfig, error) {
		fetches.Add(1)
		return []config.CardConfig{{ID: "b", Type: config.CardTimer}}, nil
	}, func(cfgs []config.CardConfig) ([]cards.Card, error) {
		builds++
		require.Len(t, cfgs, 1)
		return []cards.Card{b}, nil
	})
	q.Begin()
	defer q.End()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.prefetch(ctx)

	s.Tick()
	assert.Equal(t, 0, builds, "nothing fetched yet")

	require.True(t, q.Publish(events.New(events.KindCardConfigChanged, "")))
	require.Eventually(t, func() bool { return s.fetched.Load() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, 0, builds, "callback and prefetch must not build")

	s.Tick()
	assert.Equal(t, 1, builds)
	assert.Equal(t, "b", s.Current().ID())
	assert.True(t, a.removed)

	s.Tick()
	assert.Equal(t, 1, builds, "a fetch is consumed once")
}

func TestStack_TickDoesNotWaitOnSlowFetch(t *testing.T) {
	q := events.NewQueue(events.DefaultCapacity)
	a, _, _ := threeCards()
	s := NewStack(nil, 0)
	s.Replace([]cards.Card{a})

	release := make(chan struct{})
	started := make(chan struct{})
	s.Attach(q, func(ctx context.Context) ([]config.CardConfig, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}, func([]config.CardConfig) ([]cards.Card, error) { return nil, nil })
	q.Begin()
	defer q.End()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.prefetch(ctx)

	require.True(t, q.Publish(events.New(events.KindCardConfigChanged, "")))
	<-started

	tickDone := make(chan struct{})
	go func() {
		s.Tick()
		close(tickDone)
	}()
	select {
	case <-tickDone:
	case <-time.After(time.Second):
		t.Fatal("Tick blocked on the store read")
	}
	assert.Equal(t, "a", s.Current().ID())
	close(release)
}

func TestStack_RunRoutesPresses(t *testing.T) {
	a, b, c := threeCards()
	r := &recordRenderer{}
	s := NewStack(r, 10*time.Millisecond)
	s.Replace([]cards.Card{a, b, c})

	ctx, cancel := context.WithCancel(context.Background())
	presses := make(chan input.Button, 1)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, presses)
		close(done)
	}()

	presses <- input.Down
	assert.Eventually(t, func() bool { return r.count() > 0 && r.last().Title == "b" }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 1, s.CurrentIndex())
}
