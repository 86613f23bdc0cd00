// Package cards implements the screens of the card stack.
//
// Every method on a Card runs on the UI loop. Network-backed cards hand their
// request/response cycle to an async.Updater, whose queue callback is the
// only code that runs elsewhere.
package cards

import (
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards/async"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
)

type Card interface {
	ID() string
	Name() string
	Kind() config.CardType

	// Update advances the card by one UI tick and reports whether its view
	// changed.
	Update() bool

	// HandleButtonPress returns false to let the stack use the button for
	// navigation.
	HandleButtonPress(btn input.Button) bool

	View() display.View

	// PrepareForRemoval detaches the card from the queue before the stack
	// drops it.
	PrepareForRemoval()
}

// Deps are the collaborators shared by every card in a stack.
type Deps struct {
	Queue async.Publisher

	// Ready is the connectivity predicate. Nil means always connected.
	Ready func() bool

	// Now is the wall clock, already corrected by time sync.
	Now func() time.Time

	// Mono drives the counting cards. Time sync never moves it. Nil means
	// time.Now.
	Mono func() time.Time

	// TextCols is the display width used for truncation. Zero disables it.
	TextCols int
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) mono() time.Time {
	if d.Mono == nil {
		return time.Now()
	}
	return d.Mono()
}

type base struct {
	id   string
	name string
	kind config.CardType
}

func (b *base) ID() string            { return b.id }
func (b *base) Name() string          { return b.name }
func (b *base) Kind() config.CardType { return b.kind }

// formatMinSec renders seconds as m:ss.
func formatMinSec(total int) string {
	return formatClock(total/60, total%60)
}
