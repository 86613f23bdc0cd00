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

const WeatherInterval = 10 * time.Minute

type WeatherCard struct {
	base
	deps    Deps
	city    string
	updater *async.Updater
	data    *events.Weather
}

func NewWeatherCard(id, name, subject, city string, deps Deps) (*WeatherCard, error) {
	if name == "" {
		name = "Weather"
	}
	c := &WeatherCard{
		base: base{id: id, name: name, kind: config.CardWeather},
		deps: deps,
		city: city,
	}
	u, err := async.New(async.Config{
		Subject:      subject,
		RequestKind:  events.KindWeatherRequest,
		ResponseKind: events.KindWeatherDataReceived,
		Interval:     WeatherInterval,
		Ready:        deps.Ready,
		BuildRequest: func() string { return c.city },
		Parse: func(evt events.Event) (any, error) {
			if w, ok := evt.Parsed.(events.Weather); ok {
				return w, nil
			}
			return events.DecodeWeather(evt.Payload)
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

func (c *WeatherCard) Update() bool {
	out := c.updater.Tick(func(r any) {
		w := r.(events.Weather)
		if c.data == nil || c.data.City != w.City {
			c.publishTitle(w.City)
		}
		c.data = &w
	})
	return out != async.OutcomeNone && out != async.OutcomeRequested
}

func (c *WeatherCard) publishTitle(city string) {
	if c.deps.Queue == nil || city == "" {
		return
	}
	c.deps.Queue.Publish(events.NewTitleUpdate(c.updater.Subject(), city))
}

// HandleButtonPress refreshes on the centre button.
func (c *WeatherCard) HandleButtonPress(btn input.Button) bool {
	if btn != input.Center {
		return false
	}
	c.updater.Refresh()
	return true
}

func (c *WeatherCard) PrepareForRemoval() { c.updater.Close() }

func (c *WeatherCard) Data() (events.Weather, bool) {
	if c.data == nil {
		return events.Weather{}, false
	}
	return *c.data, true
}

func (c *WeatherCard) View() display.View {
	v := display.View{Title: "--", Lines: []string{"--°C", "---"}}
	if c.data != nil {
		w := c.data
		v.Title = w.City
		v.Lines = []string{
			fmt.Sprintf("%.0f°C", w.Temperature),
			w.Main,
			fmt.Sprintf("Feels %.0f°C", w.FeelsLike),
			fmt.Sprintf("%d%%", w.Humidity),
		}
	} else if c.city != "" {
		v.Title = c.city
	}
	v.Error = c.updater.ErrorText()
	v.Status = c.updater.StatusText()
	return v
}
