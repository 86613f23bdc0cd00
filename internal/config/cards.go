package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownCardType = errors.New("unknown card type")

// CardType identifies a kind of card the stack can show.
type CardType string

const (
	CardInsight      CardType = "INSIGHT"
	CardFriend       CardType = "FRIEND"
	CardHelloWorld   CardType = "HELLO_WORLD"
	CardFlappyHog    CardType = "FLAPPY_HOG"
	CardQuestion     CardType = "QUESTION"
	CardPaddle       CardType = "PADDLE"
	CardClock        CardType = "CLOCK"
	CardWeather      CardType = "WEATHER"
	CardNowPlaying   CardType = "NOW_PLAYING"
	CardYearProgress CardType = "YEAR_PROGRESS"
	CardTimer        CardType = "TIMER"
	CardStopwatch    CardType = "STOPWATCH"
)

var cardTypes = []CardType{
	CardInsight, CardFriend, CardHelloWorld, CardFlappyHog, CardQuestion, CardPaddle,
	CardClock, CardWeather, CardNowPlaying, CardYearProgress, CardTimer, CardStopwatch,
}

// ParseCardType is case-insensitive and accepts '-' for '_'.
func ParseCardType(s string) (CardType, error) {
	norm := CardType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, t := range cardTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownCardType)
}

// CardConfig is one configured entry in the card stack.
type CardConfig struct {
	ID     string   `yaml:"id,omitempty" json:"id"`
	Type   CardType `yaml:"type" json:"type"`
	Config string   `yaml:"config,omitempty" json:"config"`
	Order  int      `yaml:"order" json:"order"`
	Name   string   `yaml:"name,omitempty" json:"name"`
}

type cardSeed struct {
	Cards []CardConfig `yaml:"cards"`
}

// LoadCardSeed reads the initial card stack from a YAML file:
//
//	cards:
//	  - type: CLOCK
//	    config: Seoul
//	  - type: WEATHER
//	    config: London
//
// Missing order values follow file order.
func LoadCardSeed(path string) ([]CardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card seed: %w", err)
	}

	var seed cardSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse card seed: %w", err)
	}

	out := make([]CardConfig, 0, len(seed.Cards))
	for i, c := range seed.Cards {
		t, err := ParseCardType(string(c.Type))
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		c.Type = t
		if c.Order == 0 {
			c.Order = i
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// DefaultCards is used when neither the store nor a seed file has entries.
func DefaultCards() []CardConfig {
	return []CardConfig{
		{Type: CardClock, Config: "Seoul", Order: 0, Name: "Clock"},
		{Type: CardWeather, Config: "Seoul", Order: 1, Name: "Weather"},
		{Type: CardYearProgress, Config: "Seoul", Order: 2, Name: "Year Progress"},
		{Type: CardTimer, Order: 3, Name: "Timer"},
		{Type: CardStopwatch, Order: 4, Name: "Stopwatch"},
	}
}
