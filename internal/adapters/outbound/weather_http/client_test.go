package weather_http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seoulBody = `{
  "coord": {"lon": 126.98, "lat": 37.57},
  "weather": [{"id": 803, "main": "Clouds", "description": "broken clouds"}],
  "main": {"temp": 21.5, "feels_like": 20.1, "humidity": 64},
  "name": "Seoul",
  "cod": 200
}`

func TestFetchWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Seoul", r.URL.Query().Get("q"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "k3y", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(seoulBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "k3y", time.Second)
	w, err := c.FetchWeather(context.Background(), "Seoul")
	require.NoError(t, err)
	assert.Equal(t, "Seoul", w.City)
	assert.Equal(t, 21.5, w.Temperature)
	assert.Equal(t, 20.1, w.FeelsLike)
	assert.Equal(t, 64, w.Humidity)
	assert.Equal(t, "Clouds", w.Main)
}

func TestFetchWeather_APIErrorInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod": "404", "message": "city not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).FetchWeather(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city not found")
}

func TestFetchWeather_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad", time.Second).FetchWeather(context.Background(), "Seoul")
	assert.ErrorContains(t, err, "HTTP 401")
}

func TestFetchWeather_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).FetchWeather(context.Background(), "Seoul")
	assert.ErrorContains(t, err, "decode weather")
}

func TestFetchWeather_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(seoulBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "k", time.Second).FetchWeather(ctx, "Seoul")
	assert.Error(t, err)
}
