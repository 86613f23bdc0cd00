package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire payloads are pipe-delimited strings. Field order and count are fixed
// per kind; text fields have any '|' replaced with '/' on encode so the field
// count never drifts.

const payloadSep = "|"

var ErrMalformedPayload = errors.New("malformed payload")

// NowPlaying is the decoded now_playing_data_received payload.
// Wire: "title|artist|album|playedAt|isPlaying(0|1)".
type NowPlaying struct {
	Title     string
	Artist    string
	Album     string
	PlayedAt  string
	IsPlaying bool
}

func (np NowPlaying) Encode() string {
	playing := "0"
	if np.IsPlaying {
		playing = "1"
	}
	return joinFields(np.Title, np.Artist, np.Album, np.PlayedAt, playing)
}

func DecodeNowPlaying(payload string) (NowPlaying, error) {
	f, err := splitFields(payload, 5)
	if err != nil {
		return NowPlaying{}, fmt.Errorf("now playing: %w", err)
	}
	return NowPlaying{
		Title:     f[0],
		Artist:    f[1],
		Album:     f[2],
		PlayedAt:  f[3],
		IsPlaying: f[4] == "1",
	}, nil
}

// Weather is the decoded weather_data_received payload.
// Wire: "city|temperature|main|feelsLike|humidity".
type Weather struct {
	City        string
	Temperature float64
	Main        string
	FeelsLike   float64
	Humidity    int
}

func (w Weather) Encode() string {
	return joinFields(
		w.City,
		strconv.FormatFloat(w.Temperature, 'f', -1, 64),
		w.Main,
		strconv.FormatFloat(w.FeelsLike, 'f', -1, 64),
		strconv.Itoa(w.Humidity),
	)
}

// DecodeWeather requires exactly five fields. Unparseable numbers decode as
// zero rather than failing the whole payload.
func DecodeWeather(payload string) (Weather, error) {
	f, err := splitFields(payload, 5)
	if err != nil {
		return Weather{}, fmt.Errorf("weather: %w", err)
	}
	return Weather{
		City:        f[0],
		Temperature: lenientFloat(f[1]),
		Main:        f[2],
		FeelsLike:   lenientFloat(f[3]),
		Humidity:    lenientInt(f[4]),
	}, nil
}

// TimeSyncRequest is the time_sync_request payload.
// Wire: "timezoneName|utcOffsetHours".
type TimeSyncRequest struct {
	Zone           string
	UTCOffsetHours int
}

func (r TimeSyncRequest) Encode() string {
	return joinFields(r.Zone, strconv.Itoa(r.UTCOffsetHours))
}

func DecodeTimeSyncRequest(payload string) (TimeSyncRequest, error) {
	f, err := splitFields(payload, 2)
	if err != nil {
		return TimeSyncRequest{}, fmt.Errorf("time sync: %w", err)
	}
	off, err := strconv.Atoi(strings.TrimSpace(f[1]))
	if err != nil {
		return TimeSyncRequest{}, fmt.Errorf("time sync offset %q: %w", f[1], ErrMalformedPayload)
	}
	return TimeSyncRequest{Zone: f[0], UTCOffsetHours: off}, nil
}

func joinFields(fields ...string) string {
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, payloadSep, "/")
	}
	return strings.Join(fields, payloadSep)
}

func splitFields(payload string, want int) ([]string, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty: %w", ErrMalformedPayload)
	}
	f := strings.Split(payload, payloadSep)
	if len(f) != want {
		return nil, fmt.Errorf("got %d fields, want %d: %w", len(f), want, ErrMalformedPayload)
	}
	return f, nil
}

func lenientFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func lenientInt(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// "64.0" style humidity from some feeds
	return int(lenientFloat(s))
}
