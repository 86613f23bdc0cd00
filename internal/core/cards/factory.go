package cards

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/events"
)

var ErrUnsupported = errors.New("card type not supported on this device")

// Definition describes a card type for the configuration tools.
type Definition struct {
	Type          config.CardType `json:"type"`
	Name          string          `json:"name"`
	AllowMultiple bool            `json:"allow_multiple"`
	NeedsConfig   bool            `json:"needs_config"`
	ConfigLabel   string          `json:"config_label,omitempty"`
	Description   string          `json:"description"`
}

var definitions = []Definition{
	{config.CardClock, "Clock", true, true, "Timezone", "Time and date in a chosen city"},
	{config.CardWeather, "Weather", true, true, "City", "Current conditions from OpenWeatherMap"},
	{config.CardNowPlaying, "Now Playing", false, true, "Last.fm user", "Latest track scrobbled to Last.fm"},
	{config.CardYearProgress, "Year Progress", false, false, "", "How much of the year has gone by"},
	{config.CardTimer, "Timer", false, false, "", "Countdown set with the centre button"},
	{config.CardStopwatch, "Stopwatch", false, false, "", "Count-up stopwatch"},
}

func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func DefinitionFor(t config.CardType) (Definition, bool) {
	for _, d := range definitions {
		if d.Type == t {
			return d, true
		}
	}
	return Definition{}, false
}

// Factory builds cards from stored configuration. Cards of the same type get
// distinct queue subjects: the first one uses the plain subject, later ones
// have their position appended.
//
// A Factory remembers what it built last time. An entry whose id, config,
// name and subject are unchanged gets the same Card back, so a rebuild after
// an unrelated edit keeps running timers and fetched data. Build is not safe
// for concurrent use.
type Factory struct {
	deps  Deps
	built map[builtKey]Card
	next  map[builtKey]Card
}

type builtKey struct {
	id, value, name, subject string
	typ                      config.CardType
}

func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Build creates one card per entry. Entries that cannot be built are skipped
// and reported in the returned error.
func (f *Factory) Build(cfgs []config.CardConfig) ([]Card, error) {
	seen := map[string]int{}
	f.next = make(map[builtKey]Card, len(cfgs))
	var out []Card
	var errs []error
	for _, cfg := range cfgs {
		c, err := f.build(cfg, seen)
		if err != nil {
			errs = append(errs, fmt.Errorf("card %s (%s): %w", cfg.ID, cfg.Type, err))
			continue
		}
		out = append(out, c)
	}
	f.built, f.next = f.next, nil
	return out, errors.Join(errs...)
}

func (f *Factory) reuse(cfg config.CardConfig, subject string, ctor func() (Card, error)) (Card, error) {
	key := builtKey{id: cfg.ID, value: cfg.Config, name: cfg.Name, subject: subject, typ: cfg.Type}
	c, ok := f.built[key]
	if !ok || cfg.ID == "" {
		var err error
		if c, err = ctor(); err != nil {
			return nil, err
		}
	}
	f.next[key] = c
	return c, nil
}

func (f *Factory) subject(base string, seen map[string]int) string {
	n := seen[base]
	seen[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s:%d", base, n+1)
}

func (f *Factory) build(cfg config.CardConfig, seen map[string]int) (Card, error) {
	arg := strings.TrimSpace(cfg.Config)
	switch cfg.Type {
	case config.CardClock:
		subject := f.subject(events.SubjectClock, seen)
		return f.reuse(cfg, subject, func() (Card, error) {
			return NewClockCard(cfg.ID, cfg.Name, subject, config.TimezoneFor(arg), f.deps)
		})
	case config.CardWeather:
		if arg == "" {
			return nil, fmt.Errorf("weather card needs a city")
		}
		subject := f.subject(events.SubjectWeather, seen)
		return f.reuse(cfg, subject, func() (Card, error) {
			return NewWeatherCard(cfg.ID, cfg.Name, subject, arg, f.deps)
		})
	case config.CardNowPlaying:
		if arg == "" {
			return nil, fmt.Errorf("now playing card needs a Last.fm user")
		}
		subject := f.subject(events.SubjectNowPlaying, seen)
		return f.reuse(cfg, subject, func() (Card, error) {
			return NewNowPlayingCard(cfg.ID, cfg.Name, subject, arg, f.deps)
		})
	case config.CardYearProgress:
		subject := f.subject(events.SubjectYearProgress, seen)
		return f.reuse(cfg, subject, func() (Card, error) {
			return NewYearProgressCard(cfg.ID, cfg.Name, subject, config.TimezoneFor(arg), f.deps)
		})
	case config.CardTimer:
		return f.reuse(cfg, "", func() (Card, error) { return NewTimerCard(cfg.ID, cfg.Name, f.deps), nil })
	case config.CardStopwatch:
		return f.reuse(cfg, "", func() (Card, error) { return NewStopwatchCard(cfg.ID, cfg.Name, f.deps), nil })
	}
	if _, err := config.ParseCardType(string(cfg.Type)); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}
