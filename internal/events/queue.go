package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/charleschow/deskcards/internal/telemetry"
)

const (
	DefaultCapacity    = 10
	defaultStopTimeout = 2 * time.Second
)

// Callback receives every event the consumer dequeues. Callbacks run on the
// consumer goroutine, one after another, so they must be fast and must not
// block on network I/O. Hand heavy work to your own goroutine.
type Callback func(Event)

// Queue is a bounded mailbox drained by a single consumer goroutine that fans
// each event out to all subscribers in subscription order.
//
// Publish and Subscribe are safe from any goroutine, including from inside a
// callback. Delivery is FIFO: every subscriber sees event N before the
// consumer dequeues event N+1.
type Queue struct {
	mailbox        chan Event
	publishTimeout time.Duration
	stopTimeout    time.Duration

	subMu       sync.Mutex
	subscribers []Callback

	// stateMu guards the lifecycle. Publish holds the read side while it
	// sends so End can't flip running underneath an in-flight send.
	stateMu sync.RWMutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

type Option func(*Queue)

// WithPublishTimeout makes Publish wait up to d for room when the mailbox is
// full. Zero (the default) means fail immediately.
func WithPublishTimeout(d time.Duration) Option {
	return func(q *Queue) { q.publishTimeout = d }
}

// WithStopTimeout bounds how long End waits for the consumer to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(q *Queue) { q.stopTimeout = d }
}

func NewQueue(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		mailbox:     make(chan Event, capacity),
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Begin starts the consumer goroutine. Calling it while already running is a
// no-op. If a previous consumer is still finishing a slow callback after End
// timed out, Begin refuses to start a second one.
func (q *Queue) Begin() {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()

	if q.running {
		return
	}
	if q.done != nil {
		select {
		case <-q.done:
		default:
			telemetry.Warnf("events: previous consumer still running, not starting another")
			return
		}
	}

	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.running = true
	go q.run(q.stop, q.done)
}

// End stops the consumer. The event being fanned out when End is called is
// delivered to every subscriber before the goroutine exits; events still
// waiting in the mailbox are discarded. The wait is bounded by the stop
// timeout. Safe to call more than once, and before Begin.
func (q *Queue) End() {
	q.stateMu.Lock()
	if !q.running {
		q.stateMu.Unlock()
		return
	}
	q.running = false
	close(q.stop)
	done := q.done
	q.stateMu.Unlock()

	select {
	case <-done:
	case <-time.After(q.stopTimeout):
		telemetry.Warnf("events: consumer did not stop within %s", q.stopTimeout)
	}

	discarded := q.drain()
	if discarded > 0 {
		telemetry.Metrics.EventsDropped.Add(int64(discarded))
		telemetry.Debugf("events: discarded %d undelivered events on stop", discarded)
	}
	telemetry.Metrics.QueueDepth.Set(0)
}

// Publish enqueues evt. It returns false when the mailbox stays full for the
// whole publish timeout, or when the queue is not running. It never blocks
// longer than the publish timeout, so it is safe from the consumer goroutine.
func (q *Queue) Publish(evt Event) bool {
	q.stateMu.RLock()
	defer q.stateMu.RUnlock()

	if !q.running {
		telemetry.Metrics.EventsRejected.Inc()
		telemetry.Debugf("events: publish %s/%s while stopped", evt.Kind, evt.SubjectID)
		return false
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	select {
	case q.mailbox <- evt:
		q.accepted()
		return true
	default:
	}

	if q.publishTimeout > 0 {
		timer := time.NewTimer(q.publishTimeout)
		defer timer.Stop()
		select {
		case q.mailbox <- evt:
			q.accepted()
			return true
		case <-timer.C:
		}
	}

	telemetry.Metrics.EventsDropped.Inc()
	telemetry.Warnf("events: mailbox full (cap=%d), dropping %s/%s", cap(q.mailbox), evt.Kind, evt.SubjectID)
	return false
}

func (q *Queue) accepted() {
	telemetry.Metrics.EventsPublished.Inc()
	telemetry.Metrics.QueueDepth.Set(int64(len(q.mailbox)))
}

// Subscribe appends cb to the fan-out list. Subscriptions last for the
// lifetime of the queue.
func (q *Queue) Subscribe(cb Callback) {
	if cb == nil {
		return
	}
	q.subMu.Lock()
	defer q.subMu.Unlock()
	q.subscribers = append(q.subscribers, cb)
}

func (q *Queue) Running() bool {
	q.stateMu.RLock()
	defer q.stateMu.RUnlock()
	return q.running
}

func (q *Queue) Len() int { return len(q.mailbox) }
func (q *Queue) Cap() int { return cap(q.mailbox) }

func (q *Queue) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		// Check stop first so a busy mailbox can't starve shutdown.
		select {
		case <-stop:
			return
		default:
		}

		select {
		case <-stop:
			return
		case evt := <-q.mailbox:
			telemetry.Metrics.QueueDepth.Set(int64(len(q.mailbox)))
			q.dispatch(evt)
		}
	}
}

func (q *Queue) dispatch(evt Event) {
	q.subMu.Lock()
	subs := make([]Callback, len(q.subscribers))
	copy(subs, q.subscribers)
	q.subMu.Unlock()

	start := time.Now()
	for i, cb := range subs {
		q.invoke(i, cb, evt)
	}
	telemetry.Metrics.EventsProcessed.Inc()
	telemetry.Metrics.FanoutLatency.Record(time.Since(start))
}

// invoke runs one callback. A panicking callback is logged and skipped so the
// remaining subscribers still see the event.
func (q *Queue) invoke(idx int, cb Callback, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.CallbackPanics.Inc()
			telemetry.Errorf("events: subscriber %d panicked on %s/%s: %v", idx, evt.Kind, evt.SubjectID, r)
		}
	}()
	cb(evt)
	telemetry.Metrics.EventsDelivered.Inc()
}

func (q *Queue) drain() int {
	n := 0
	for {
		select {
		case <-q.mailbox:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) String() string {
	return fmt.Sprintf("Queue(len=%d cap=%d running=%t)", q.Len(), q.Cap(), q.Running())
}
