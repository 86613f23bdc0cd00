// Package timesync keeps the device clock honest by reading the Date header
// of a well-known HTTPS endpoint.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

var ErrNoDate = errors.New("response has no Date header")

// Clock is the wall clock shown by the cards: local time plus the offset
// measured by the last sync. Safe for concurrent use.
type Clock struct {
	mu       sync.RWMutex
	offset   time.Duration
	lastSync time.Time
	now      func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Add(c.offset)
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// LastSync is zero until the first successful sync.
func (c *Clock) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

func (c *Clock) set(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.lastSync = c.now()
	c.mu.Unlock()
}

// Client measures the clock offset against a time source.
type Client struct {
	url        string
	httpClient *http.Client
	clock      *Clock
}

func NewClient(url string, clock *Clock, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}, clock: clock}
}

// ResolveZone turns a sync request into a location. Known names use the zone
// database; anything else gets a fixed offset.
func ResolveZone(req events.TimeSyncRequest) *time.Location {
	if tz, ok := config.LookupTimezone(req.Zone); ok {
		return tz.Load()
	}
	return time.FixedZone(req.Zone, req.UTCOffsetHours*3600)
}

func (c *Client) SyncTime(ctx context.Context, req events.TimeSyncRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	sent := c.clock.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	resp.Body.Close()
	recv := c.clock.now()

	date := resp.Header.Get("Date")
	if date == "" {
		return ErrNoDate
	}
	server, err := http.ParseTime(date)
	if err != nil {
		return fmt.Errorf("parse Date %q: %w", date, err)
	}

	// the header has second resolution; compare against the midpoint
	local := sent.Add(recv.Sub(sent) / 2)
	offset := server.Sub(local)
	if offset > -time.Second && offset < time.Second {
		offset = 0
	}

	c.clock.set(offset)
	telemetry.Infof("timesync: %s synced, offset %s (%s)", req.Zone, offset, server.In(ResolveZone(req)).Format(time.Kitchen))
	return nil
}
