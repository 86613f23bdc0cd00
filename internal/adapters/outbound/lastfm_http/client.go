package lastfm_http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

var ErrNoTracks = errors.New("no recent tracks")

const (
	playedNow      = "Now playing"
	playedRecently = "Recently played"
)

// Client reads a user's most recent scrobble from the Last.fm 2.0 API.
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
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
}

type textField struct {
	Text string `json:"#text"`
}

type track struct {
	Name   string    `json:"name"`
	Artist textField `json:"artist"`
	Album  textField `json:"album"`
	Date   *struct {
		UTS  string `json:"uts"`
		Text string `json:"#text"`
	} `json:"date"`
	Attr *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

type recentTracksResponse struct {
	Error        int    `json:"error"`
	Message      string `json:"message"`
	RecentTracks struct {
		// an array, or a bare object when there is a single track
		Track json.RawMessage `json:"track"`
	} `json:"recenttracks"`
}

func (r *recentTracksResponse) tracks() ([]track, error) {
	raw := bytes.TrimSpace(r.RecentTracks.Track)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '{' {
		var t track
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return []track{t}, nil
	}
	var ts []track
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *Client) FetchNowPlaying(ctx context.Context, user string) (events.NowPlaying, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return events.NowPlaying{}, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("method", "user.getrecenttracks")
	q.Set("user", user)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2.0/?"+q.Encode(), nil)
	if err != nil {
		return events.NowPlaying{}, fmt.Errorf("new request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return events.NowPlaying{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.NowPlaying{}, fmt.Errorf("read response: %w", err)
	}
	telemetry.Debugf("lastfm_http: recent tracks for %s -> %d (%s)", user, resp.StatusCode, time.Since(start))

	var rt recentTracksResponse
	if err := json.Unmarshal(body, &rt); err != nil {
		if resp.StatusCode != http.StatusOK {
			return events.NowPlaying{}, fmt.Errorf("lastfm %s: HTTP %d", user, resp.StatusCode)
		}
		return events.NowPlaying{}, fmt.Errorf("decode recent tracks: %w", err)
	}
	if rt.Error != 0 {
		return events.NowPlaying{}, fmt.Errorf("lastfm %s: api error %d: %s", user, rt.Error, rt.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return events.NowPlaying{}, fmt.Errorf("lastfm %s: HTTP %d", user, resp.StatusCode)
	}

	tracks, err := rt.tracks()
	if err != nil {
		return events.NowPlaying{}, fmt.Errorf("decode tracks: %w", err)
	}
	if len(tracks) == 0 {
		return events.NowPlaying{}, ErrNoTracks
	}
	return toNowPlaying(tracks[0]), nil
}

func toNowPlaying(t track) events.NowPlaying {
	np := events.NowPlaying{
		Title:  Sanitize(t.Name),
		Artist: Sanitize(t.Artist.Text),
		Album:  Sanitize(t.Album.Text),
	}
	switch {
	case t.Attr != nil && t.Attr.NowPlaying != "":
		np.IsPlaying = true
		np.PlayedAt = playedNow
	case t.Date != nil:
		np.PlayedAt = Sanitize(t.Date.Text)
	default:
		np.PlayedAt = playedRecently
	}
	return np
}

// Sanitize keeps what the display font can draw: printable ASCII and the
// Latin-1 supplement. Text is composed first so a decomposed "é" survives.
// Everything else becomes '?'.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFC.String(s) {
		if (r >= 0x20 && r <= 0x7F) || (r >= 0xA0 && r <= 0xFF) {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
