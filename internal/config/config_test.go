package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // keep a developer's .env out of the test
	cfg := Load()
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, time.Duration(0), cfg.QueuePublishTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUEUE_CAPACITY", "32")
	t.Setenv("QUEUE_PUBLISH_TIMEOUT", "50ms")
	t.Setenv("TICK_INTERVAL", "250")
	t.Setenv("FETCH_TIMEOUT", "not-a-duration")

	cfg := Load()
	assert.Equal(t, 32, cfg.QueueCapacity)
	assert.Equal(t, 50*time.Millisecond, cfg.QueuePublishTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEATHER_API_KEY=abc123\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("WEATHER_API_KEY") })

	cfg := Load()
	assert.Equal(t, "abc123", cfg.WeatherAPIKey)
}

func TestParseCardType(t *testing.T) {
	ct, err := ParseCardType("now-playing")
	require.NoError(t, err)
	assert.Equal(t, CardNowPlaying, ct)

	ct, err = ParseCardType(" clock ")
	require.NoError(t, err)
	assert.Equal(t, CardClock, ct)

	_, err = ParseCardType("toaster")
	assert.ErrorIs(t, err, ErrUnknownCardType)
}

func TestLoadCardSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.yaml")
	seed := `cards:
  - type: weather
    config: London
    order: 5
  - type: CLOCK
    config: Tokyo
  - type: TIMER
    name: Tea
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	cards, err := LoadCardSeed(path)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, CardClock, cards[0].Type)
	assert.Equal(t, CardTimer, cards[1].Type)
	assert.Equal(t, "Tea", cards[1].Name)
	assert.Equal(t, CardWeather, cards[2].Type)
	assert.Equal(t, "London", cards[2].Config)
}

func TestLoadCardSeed_Errors(t *testing.T) {
	_, err := LoadCardSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - type: LASER\n"), 0o600))
	_, err = LoadCardSeed(path)
	assert.ErrorIs(t, err, ErrUnknownCardType)
}

func TestTimezoneFor(t *testing.T) {
	assert.Equal(t, -5, TimezoneFor("New York").UTCOffsetHours)
	assert.Equal(t, "Seoul", TimezoneFor("").Name)
	assert.Equal(t, "Seoul", TimezoneFor("Atlantis").Name)

	_, ok := LookupTimezone("Atlantis")
	assert.False(t, ok)
}
