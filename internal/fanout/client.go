package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Client tails a device's event mirror and hands every event to a handler.
type Client struct {
	addr    string
	kinds   []string
	handler func(events.Event)
}

func NewClient(addr string, kinds []string, handler func(events.Event)) *Client {
	return &Client{addr: addr, kinds: kinds, handler: handler}
}

// ConnectWithRetry connects to the mirror and reconnects on failure with
// exponential backoff. Blocks until ctx is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connStart := time.Now()
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(connStart) > time.Minute {
			attempt = 0
		}

		attempt++
		backoff := time.Duration(float64(minBackoff) * math.Pow(2, float64(min(attempt-1, 5))))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		if err != nil {
			telemetry.Warnf("fanout: connection lost (attempt %d): %v, retrying in %s", attempt, err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) url() string {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	if len(c.kinds) > 0 {
		u.RawQuery = url.Values{"kinds": {strings.Join(c.kinds, ",")}}.Encode()
	}
	return u.String()
}

func (c *Client) connect(ctx context.Context) error {
	target := c.url()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	// unblock ReadMessage on cancel
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	telemetry.Infof("fanout: connected to %s", c.addr)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		evt, err := UnmarshalEvent(msg)
		if err != nil {
			telemetry.Warnf("fanout: unmarshal error: %v", err)
			continue
		}
		c.handler(evt)
	}
}

// APIClient talks to the card API of a running device.
type APIClient struct {
	base       string
	httpClient *http.Client
}

func NewAPIClient(addr string) *APIClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &APIClient{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, r)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (a *APIClient) ListCards(ctx context.Context) ([]config.CardConfig, error) {
	var out []config.CardConfig
	err := a.do(ctx, http.MethodGet, "/api/cards", nil, &out)
	return out, err
}

func (a *APIClient) AddCard(ctx context.Context, typ, value, name string) (config.CardConfig, error) {
	var out config.CardConfig
	err := a.do(ctx, http.MethodPost, "/api/cards", addCardRequest{Type: typ, Config: value, Name: name}, &out)
	return out, err
}

func (a *APIClient) RemoveCard(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(id), nil, nil)
}

func (a *APIClient) UpdateCard(ctx context.Context, id, value, name string) error {
	return a.do(ctx, http.MethodPut, "/api/cards/"+url.PathEscape(id), updateCardRequest{Config: value, Name: name}, nil)
}

func (a *APIClient) MoveCard(ctx context.Context, id string, index int) error {
	return a.do(ctx, http.MethodPost, "/api/cards/"+url.PathEscape(id)+"/move", moveCardRequest{Index: index}, nil)
}

func (a *APIClient) Definitions(ctx context.Context) ([]cards.Definition, error) {
	var out []cards.Definition
	err := a.do(ctx, http.MethodGet, "/api/definitions", nil, &out)
	return out, err
}
