package weather_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
	"golang.org/x/time/rate"
)

// Client fetches current conditions from the OpenWeatherMap v2.5 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// free tier allows 60 calls a minute
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

type weatherResponse struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
	Name    string          `json:"name"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// code reads "cod", which the API sends as a number on success and as a
// string on errors.
func (r *weatherResponse) code() int {
	s := strings.Trim(string(r.Cod), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) FetchWeather(ctx context.Context, city string) (events.Weather, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return events.Weather{}, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)
	reqURL := c.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return events.Weather{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return events.Weather{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.Weather{}, fmt.Errorf("read response: %w", err)
	}
	telemetry.Debugf("weather_http: GET %s -> %d (%s)", city, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return events.Weather{}, fmt.Errorf("weather %s: HTTP %d", city, resp.StatusCode)
	}

	var wr weatherResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return events.Weather{}, fmt.Errorf("decode weather: %w", err)
	}
	if code := wr.code(); code != http.StatusOK {
		return events.Weather{}, fmt.Errorf("weather %s: api error %d: %s", city, code, wr.Message)
	}

	w := events.Weather{
		City:        wr.Name,
		Temperature: wr.Main.Temp,
		FeelsLike:   wr.Main.FeelsLike,
		Humidity:    int(wr.Main.Humidity),
	}
	if w.City == "" {
		w.City = city
	}
	if len(wr.Weather) > 0 {
		w.Main = wr.Weather[0].Main
	}
	return w, nil
}
