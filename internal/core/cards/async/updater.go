// Package async holds the request/response cycle shared by every card whose
// data comes from the IO side.
//
// An Updater lives on two goroutines. Tick, Attempt and Refresh run on the UI
// loop; the queue callback runs on the queue consumer. The only state they
// share is the single-slot pending buffer, guarded by pendMu. Everything else
// belongs to the UI loop.
package async

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 2 * time.Second
)

// Messages surfaced on the card while it has no data yet.
const (
	MsgConnecting   = "Connecting..."
	MsgNoConnection = "No Connection"
	MsgInvalidData  = "Invalid data"
	MsgFetchFailed  = "Failed to fetch"
)

type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingReady
	StatusRequestSent
	StatusApplied
	StatusErrorShown
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingReady:
		return "awaiting_ready"
	case StatusRequestSent:
		return "request_sent"
	case StatusApplied:
		return "applied"
	case StatusErrorShown:
		return "error_shown"
	}
	return "unknown"
}

// Outcome says what a Tick did, so the card knows whether to redraw.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeRequested
	OutcomeRetrying
	OutcomeApplied
	OutcomeError
	OutcomePublishFailed
)

// Publisher is the slice of the event queue the updater needs.
type Publisher interface {
	Publish(evt events.Event) bool
	Subscribe(cb events.Callback)
}

type Config struct {
	Subject      string
	RequestKind  events.Kind
	ResponseKind events.Kind
	Interval     time.Duration
	RetryDelay   time.Duration
	MaxRetries   int

	// Ready gates every attempt. Nil means always ready.
	Ready func() bool

	// BuildRequest produces the request payload. Nil sends an empty payload.
	BuildRequest func() string

	// Parse decodes a successful response. Nil hands the raw payload through.
	Parse func(evt events.Event) (any, error)

	// EmptyOK accepts a successful response with no payload (time sync).
	EmptyOK bool

	Now func() time.Time
}

type pending struct {
	set    bool
	result any
	errMsg string
}

type Updater struct {
	cfg Config
	q   Publisher

	// UI loop only
	requested     bool
	lastRequestAt time.Time
	retryCount    int
	hasData       bool
	errorShown    bool
	errorText     string
	statusText    string
	status        Status

	pendMu sync.Mutex
	pend   pending

	closed atomic.Bool
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Updater, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("async: subject required")
	}
	if !cfg.RequestKind.IsRequest() {
		return nil, fmt.Errorf("async: %q is not a request kind", cfg.RequestKind)
	}
	if !cfg.ResponseKind.IsResponse() {
		return nil, fmt.Errorf("async: %q is not a response kind", cfg.ResponseKind)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("async: interval must be positive")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Updater{cfg: cfg}, nil
}

// Attach subscribes the response filter. Call once, before the first Tick.
func (u *Updater) Attach(q Publisher) {
	u.q = q
	q.Subscribe(u.handle)
}

// Close makes the callback ignore everything from now on. The queue keeps
// the subscription, so a removed card must be closed rather than dropped.
func (u *Updater) Close() { u.closed.Store(true) }

// handle runs on the queue consumer. It must not touch anything but pend.
func (u *Updater) handle(evt events.Event) {
	if u.closed.Load() {
		return
	}
	if evt.Kind != u.cfg.ResponseKind || evt.SubjectID != u.cfg.Subject {
		return
	}

	var p pending
	switch {
	case !evt.Success || (evt.Payload == "" && !u.cfg.EmptyOK):
		p = pending{set: true, errMsg: MsgFetchFailed}
	case u.cfg.Parse == nil:
		p = pending{set: true, result: evt.Payload}
	default:
		res, err := u.cfg.Parse(evt)
		if err != nil {
			telemetry.Debugf("%s: bad payload %q: %v", u.cfg.Subject, evt.Payload, err)
			p = pending{set: true, errMsg: MsgInvalidData}
		} else {
			p = pending{set: true, result: res}
		}
	}

	u.pendMu.Lock()
	u.pend = p
	u.pendMu.Unlock()
}

func (u *Updater) takePending() pending {
	u.pendMu.Lock()
	p := u.pend
	u.pend = pending{}
	u.pendMu.Unlock()
	return p
}

// Tick drains the pending slot, then starts a new attempt if the interval
// has run out. apply receives a successful result on the UI loop.
func (u *Updater) Tick(apply func(result any)) Outcome {
	if p := u.takePending(); p.set {
		if p.errMsg == "" {
			if apply != nil {
				apply(p.result)
			}
			u.hasData = true
			u.errorShown = false
			u.errorText = ""
			u.statusText = ""
			u.status = StatusApplied
			telemetry.Metrics.ResultsApplied.Inc()
			return OutcomeApplied
		}
		if u.showError(p.errMsg) {
			return OutcomeError
		}
		return OutcomeNone
	}

	if u.requested && u.cfg.Now().Sub(u.lastRequestAt) < u.cfg.Interval {
		return OutcomeNone
	}
	return u.Attempt()
}

// Attempt runs the readiness gate and publishes a request if it passes.
func (u *Updater) Attempt() Outcome {
	now := u.cfg.Now()
	u.requested = true

	if !u.cfg.Ready() {
		u.status = StatusAwaitingReady
		if u.retryCount < u.cfg.MaxRetries {
			u.retryCount++
			if !u.hasData {
				if u.retryCount == 1 {
					u.statusText = MsgConnecting
				} else {
					u.statusText = fmt.Sprintf("Retry %d/%d", u.retryCount, u.cfg.MaxRetries)
				}
			}
			// next attempt after RetryDelay rather than a full interval
			u.lastRequestAt = now.Add(u.cfg.RetryDelay - u.cfg.Interval)
			return OutcomeRetrying
		}
		u.lastRequestAt = now
		u.statusText = ""
		if !u.errorShown && u.showError(MsgNoConnection) {
			return OutcomeError
		}
		return OutcomeNone
	}

	u.retryCount = 0
	u.lastRequestAt = now
	if !u.hasData && !u.errorShown {
		u.statusText = ""
	}

	var payload string
	if u.cfg.BuildRequest != nil {
		payload = u.cfg.BuildRequest()
	}
	if u.q == nil || !u.q.Publish(events.NewWithPayload(u.cfg.RequestKind, u.cfg.Subject, payload)) {
		telemetry.Warnf("%s: request not queued, retrying next interval", u.cfg.Subject)
		return OutcomePublishFailed
	}
	u.status = StatusRequestSent
	return OutcomeRequested
}

// Refresh is the manual refresh: forget the retry history and try now.
func (u *Updater) Refresh() Outcome {
	u.retryCount = 0
	u.errorShown = false
	return u.Attempt()
}

// showError surfaces msg unless good data is already on screen.
func (u *Updater) showError(msg string) bool {
	if u.hasData {
		telemetry.Debugf("%s: suppressed %q, keeping last data", u.cfg.Subject, msg)
		return false
	}
	u.errorShown = true
	u.errorText = msg
	u.statusText = ""
	u.status = StatusErrorShown
	return true
}

func (u *Updater) Subject() string    { return u.cfg.Subject }
func (u *Updater) HasData() bool      { return u.hasData }
func (u *Updater) ErrorShown() bool   { return u.errorShown }
func (u *Updater) ErrorText() string  { return u.errorText }
func (u *Updater) StatusText() string { return u.statusText }
func (u *Updater) Status() Status     { return u.status }
func (u *Updater) RetryCount() int    { return u.retryCount }
