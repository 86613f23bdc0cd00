// Package link watches network reachability and answers the cards'
// readiness question.
package link

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second

	DefaultInterval    = 15 * time.Second
	defaultDialTimeout = 3 * time.Second
)

type Publisher interface {
	Publish(evt events.Event) bool
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Monitor probes a TCP address. Ready is safe to call from any goroutine.
type Monitor struct {
	addr     string
	interval time.Duration
	q        Publisher
	dial     dialFunc

	ready    atomic.Bool
	failures int
}

func NewMonitor(addr string, interval time.Duration, q Publisher) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	d := &net.Dialer{Timeout: defaultDialTimeout}
	return &Monitor{addr: addr, interval: interval, q: q, dial: d.DialContext}
}

func (m *Monitor) Ready() bool { return m.ready.Load() }

// Probe makes one connection attempt and updates the ready state.
func (m *Monitor) Probe(ctx context.Context) error {
	conn, err := m.dial(ctx, "tcp", m.addr)
	if err != nil {
		m.setReady(false, err)
		return fmt.Errorf("probe %s: %w", m.addr, err)
	}
	conn.Close()
	m.setReady(true, nil)
	return nil
}

func (m *Monitor) setReady(up bool, err error) {
	was := m.ready.Swap(up)
	switch {
	case up && !was:
		m.failures = 0
		telemetry.Infof("link: %s reachable", m.addr)
		m.publish(events.KindWiFiConnected)
	case !up && (was || m.failures == 0):
		telemetry.Warnf("link: %s unreachable: %v", m.addr, err)
		m.publish(events.KindWiFiConnectionFailed)
	}
	if !up {
		m.failures++
	}
}

func (m *Monitor) publish(k events.Kind) {
	if m.q == nil {
		return
	}
	if !m.q.Publish(events.New(k, "")) {
		telemetry.Debugf("link: %s not queued", k)
	}
}

// backoff grows from 1s to 30s while the link stays down.
func (m *Monitor) backoff() time.Duration {
	d := time.Duration(float64(minBackoff) * math.Pow(2, float64(min(m.failures-1, 5))))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// Run probes until ctx is cancelled: every interval while up, with
// exponential backoff while down.
func (m *Monitor) Run(ctx context.Context) {
	m.publish(events.KindWiFiConnecting)
	for {
		wait := m.interval
		if err := m.Probe(ctx); err != nil {
			wait = m.backoff()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
