// Package service is the IO side of the device. It answers the requests
// cards publish on the event queue by calling the network collaborators and
// publishing the outcome as a response event.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

type WeatherFetcher interface {
	FetchWeather(ctx context.Context, city string) (events.Weather, error)
}

type NowPlayingFetcher interface {
	FetchNowPlaying(ctx context.Context, user string) (events.NowPlaying, error)
}

type TimeSyncer interface {
	SyncTime(ctx context.Context, req events.TimeSyncRequest) error
}

// Collaborators may be left nil; requests for a missing one fail at once.
type Collaborators struct {
	Weather    WeatherFetcher
	NowPlaying NowPlayingFetcher
	TimeSync   TimeSyncer
}

type Queue interface {
	Publish(evt events.Event) bool
	Subscribe(cb events.Callback)
}

const (
	DefaultInboxSize = 8
	DefaultTimeout   = 10 * time.Second
)

// Dispatcher moves requests off the queue consumer onto its own workers so
// the queue callback returns immediately.
type Dispatcher struct {
	q       Queue
	collab  Collaborators
	timeout time.Duration
	workers int

	inbox   chan events.Event
	wg      sync.WaitGroup
	flights singleflight.Group // identical requests in flight share one fetch
}

func NewDispatcher(q Queue, collab Collaborators, timeout time.Duration, workers int) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		q:       q,
		collab:  collab,
		timeout: timeout,
		workers: workers,
		inbox:   make(chan events.Event, DefaultInboxSize),
	}
}

// Attach subscribes to the queue. Requests arriving before Start wait in the
// inbox until it fills.
func (d *Dispatcher) Attach() {
	d.q.Subscribe(d.onEvent)
}

// Start runs the workers until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// onEvent runs on the queue consumer.
func (d *Dispatcher) onEvent(evt events.Event) {
	if !evt.Kind.IsRequest() {
		return
	}
	if !d.supports(evt.Kind) {
		telemetry.Debugf("dispatcher: no handler for %s", evt.Kind)
		d.fail(evt)
		return
	}
	select {
	case d.inbox <- evt:
	default:
		telemetry.Metrics.RequestsRejected.Inc()
		telemetry.Warnf("dispatcher: inbox full (cap=%d), failing %s/%s", cap(d.inbox), evt.Kind, evt.SubjectID)
		d.fail(evt)
	}
}

func (d *Dispatcher) supports(k events.Kind) bool {
	switch k {
	case events.KindWeatherRequest:
		return d.collab.Weather != nil
	case events.KindNowPlayingRequest:
		return d.collab.NowPlaying != nil
	case events.KindTimeSyncRequest:
		return d.collab.TimeSync != nil
	}
	return false
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-d.inbox:
			d.Handle(ctx, evt)
		}
	}
}

// Handle serves one request synchronously and publishes its response.
func (d *Dispatcher) Handle(ctx context.Context, req events.Event) {
	respKind, ok := events.ResponseKind(req.Kind)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	v, err, shared := d.flights.Do(string(req.Kind)+"\x00"+req.Payload, func() (any, error) {
		return d.serve(ctx, req)
	})
	telemetry.Metrics.FetchLatency.Record(time.Since(start))
	if shared {
		telemetry.Debugf("dispatcher: %s for %s shared an in-flight fetch", req.Kind, req.SubjectID)
	}

	if err != nil {
		telemetry.Metrics.FetchErrors.Inc()
		telemetry.Warnf("dispatcher: %s for %s: %v", req.Kind, req.SubjectID, err)
		d.fail(req)
		return
	}
	resp := v.(events.Event)
	resp.Kind = respKind
	resp.SubjectID = req.SubjectID
	resp.Success = true
	telemetry.Metrics.RequestsServed.Inc()
	d.publish(resp)
}

func (d *Dispatcher) serve(ctx context.Context, req events.Event) (events.Event, error) {
	switch req.Kind {
	case events.KindWeatherRequest:
		city := strings.TrimSpace(req.Payload)
		if city == "" {
			return events.Event{}, fmt.Errorf("empty city")
		}
		w, err := d.collab.Weather.FetchWeather(ctx, city)
		if err != nil {
			return events.Event{}, err
		}
		return events.Event{Payload: w.Encode(), Parsed: w}, nil

	case events.KindNowPlayingRequest:
		user := strings.TrimSpace(req.Payload)
		if user == "" {
			return events.Event{}, fmt.Errorf("empty username")
		}
		np, err := d.collab.NowPlaying.FetchNowPlaying(ctx, user)
		if err != nil {
			return events.Event{}, err
		}
		return events.Event{Payload: np.Encode(), Parsed: np}, nil

	case events.KindTimeSyncRequest:
		tsr, err := events.DecodeTimeSyncRequest(req.Payload)
		if err != nil {
			return events.Event{}, err
		}
		if err := d.collab.TimeSync.SyncTime(ctx, tsr); err != nil {
			return events.Event{}, err
		}
		return events.Event{}, nil
	}
	return events.Event{}, fmt.Errorf("unhandled request %s", req.Kind)
}

func (d *Dispatcher) fail(req events.Event) {
	respKind, ok := events.ResponseKind(req.Kind)
	if !ok {
		return
	}
	d.publish(events.NewResponse(respKind, req.SubjectID, "", false))
}

func (d *Dispatcher) publish(resp events.Event) {
	if !d.q.Publish(resp) {
		telemetry.Warnf("dispatcher: response %s/%s dropped, queue full", resp.Kind, resp.SubjectID)
	}
}
