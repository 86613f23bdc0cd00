package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Event queue
	QueueCapacity       int
	QueuePublishTimeout time.Duration

	// UI loop
	TickInterval time.Duration
	ScreenWidth  int
	ScreenHeight int
	ThemePath    string

	// Card stack
	CardsDBPath   string
	CardsSeedPath string

	// Network link
	LinkProbeAddr     string
	LinkProbeInterval time.Duration

	// Collaborators
	WeatherBaseURL string
	WeatherAPIKey  string
	LastFMBaseURL  string
	LastFMAPIKey   string
	TimeSourceURL  string
	FetchTimeout   time.Duration
	IOWorkers      int

	// Event mirror
	MirrorAddr string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		QueueCapacity:       envInt("QUEUE_CAPACITY", 10),
		QueuePublishTimeout: envDuration("QUEUE_PUBLISH_TIMEOUT", 0),

		TickInterval: envDuration("TICK_INTERVAL", 100*time.Millisecond),
		ScreenWidth:  envInt("SCREEN_WIDTH", 240),
		ScreenHeight: envInt("SCREEN_HEIGHT", 135),
		ThemePath:    envStr("THEME_PATH", ""),

		CardsDBPath:   envStr("CARDS_DB_PATH", "data/cards.db"),
		CardsSeedPath: envStr("CARDS_SEED_PATH", "cards.yaml"),

		LinkProbeAddr:     envStr("LINK_PROBE_ADDR", "1.1.1.1:53"),
		LinkProbeInterval: envDuration("LINK_PROBE_INTERVAL", 5*time.Second),

		WeatherBaseURL: envStr("WEATHER_BASE_URL", "https://api.openweathermap.org"),
		WeatherAPIKey:  envStr("WEATHER_API_KEY", ""),
		LastFMBaseURL:  envStr("LASTFM_BASE_URL", "https://ws.audioscrobbler.com"),
		LastFMAPIKey:   envStr("LASTFM_API_KEY", ""),
		TimeSourceURL:  envStr("TIME_SOURCE_URL", "https://www.google.com"),
		FetchTimeout:   envDuration("FETCH_TIMEOUT", 10*time.Second),
		IOWorkers:      envInt("IO_WORKERS", 1),

		MirrorAddr: envStr("MIRROR_ADDR", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("250ms", "2s") or bare milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
