package async

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

func init() {
	telemetry.InitWriter(io.Discard, slog.LevelError)
}

// fakeQueue delivers synchronously so the tests control both goroutines.
type fakeQueue struct {
	mu        sync.Mutex
	published []events.Event
	subs      []events.Callback
	full      bool
}

func (f *fakeQueue) Publish(evt events.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.published = append(f.published, evt)
	return true
}

func (f *fakeQueue) Subscribe(cb events.Callback) { f.subs = append(f.subs, cb) }

func (f *fakeQueue) deliver(evt events.Event) {
	for _, cb := range f.subs {
		cb(evt)
	}
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newWeatherUpdater(t *testing.T, ready func() bool) (*Updater, *fakeQueue, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	u, err := New(Config{
		Subject:      events.SubjectWeather,
		RequestKind:  events.KindWeatherRequest,
		ResponseKind: events.KindWeatherDataReceived,
		Interval:     10 * time.Minute,
		Ready:        ready,
		BuildRequest: func() string { return "Seoul" },
		Parse: func(evt events.Event) (any, error) {
			return events.DecodeWeather(evt.Payload)
		},
		Now: clk.Now,
	})
	require.NoError(t, err)
	q := &fakeQueue{}
	u.Attach(q)
	return u, q, clk
}

func weatherOK() events.Event {
	return events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "Seoul|21.5|Clouds|20|64", true)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{RequestKind: events.KindWeatherRequest, ResponseKind: events.KindWeatherDataReceived, Interval: time.Second})
	assert.Error(t, err)

	_, err = New(Config{Subject: "x", RequestKind: events.KindWeatherDataReceived, ResponseKind: events.KindWeatherDataReceived, Interval: time.Second})
	assert.Error(t, err)

	_, err = New(Config{Subject: "x", RequestKind: events.KindWeatherRequest, ResponseKind: events.KindWeatherDataReceived})
	assert.Error(t, err)

	u, err := New(Config{Subject: "x", RequestKind: events.KindWeatherRequest, ResponseKind: events.KindWeatherDataReceived, Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, u.cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, u.cfg.RetryDelay)
}

func TestTick_FirstTickRequestsImmediately(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)

	assert.Equal(t, OutcomeRequested, u.Tick(nil))
	require.Equal(t, 1, q.count())
	assert.Equal(t, events.KindWeatherRequest, q.published[0].Kind)
	assert.Equal(t, events.SubjectWeather, q.published[0].SubjectID)
	assert.Equal(t, "Seoul", q.published[0].Payload)
	assert.Equal(t, StatusRequestSent, u.Status())

	// nothing more until the interval runs out
	assert.Equal(t, OutcomeNone, u.Tick(nil))
	assert.Equal(t, 1, q.count())
}

func TestTick_RequestsAgainAfterInterval(t *testing.T) {
	u, q, clk := newWeatherUpdater(t, nil)
	u.Tick(nil)

	clk.Advance(10*time.Minute - time.Second)
	u.Tick(nil)
	assert.Equal(t, 1, q.count())

	clk.Advance(time.Second)
	assert.Equal(t, OutcomeRequested, u.Tick(nil))
	assert.Equal(t, 2, q.count())
}

func TestTick_AppliesBufferedResultOnUITick(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(weatherOK())
	assert.False(t, u.HasData(), "callback must only buffer")

	var got events.Weather
	out := u.Tick(func(r any) { got = r.(events.Weather) })
	assert.Equal(t, OutcomeApplied, out)
	assert.True(t, u.HasData())
	assert.Equal(t, "Seoul", got.City)
	assert.Equal(t, 64, got.Humidity)
	assert.Equal(t, StatusApplied, u.Status())
}

func TestHandle_PendingIsLastWriteWins(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "Seoul|1|Rain|1|1", true))
	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "Seoul|2|Snow|2|2", true))

	var applied []string
	u.Tick(func(r any) { applied = append(applied, r.(events.Weather).Main) })
	u.Tick(func(r any) { applied = append(applied, r.(events.Weather).Main) })
	assert.Equal(t, []string{"Snow"}, applied)
}

func TestHandle_FiltersOnKindAndSubject(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(events.NewResponse(events.KindWeatherDataReceived, "other", "Seoul|1|Rain|1|1", true))
	q.deliver(events.NewResponse(events.KindNowPlayingDataReceived, events.SubjectWeather, "a|b|c|d|1", true))
	q.deliver(events.NewWithPayload(events.KindWeatherRequest, events.SubjectWeather, "Seoul"))

	assert.Equal(t, OutcomeNone, u.Tick(func(any) { t.Fatal("must not apply") }))
	assert.False(t, u.HasData())
	assert.False(t, u.ErrorShown())
}

func TestHandle_FailureShowsFetchError(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "", false))
	assert.Equal(t, OutcomeError, u.Tick(nil))
	assert.True(t, u.ErrorShown())
	assert.Equal(t, MsgFetchFailed, u.ErrorText())

	// a later success clears it
	q.deliver(weatherOK())
	assert.Equal(t, OutcomeApplied, u.Tick(nil))
	assert.False(t, u.ErrorShown())
	assert.Empty(t, u.ErrorText())
}

func TestHandle_SuccessWithEmptyPayloadIsFailure(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(events.Event{Kind: events.KindWeatherDataReceived, SubjectID: events.SubjectWeather, Success: true})
	assert.Equal(t, OutcomeError, u.Tick(nil))
	assert.Equal(t, MsgFetchFailed, u.ErrorText())
}

func TestHandle_MalformedPayloadShowsInvalidData(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "Seoul|21", true))
	assert.Equal(t, OutcomeError, u.Tick(nil))
	assert.Equal(t, MsgInvalidData, u.ErrorText())
}

func TestNoDataLossToError(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)

	current := ""
	apply := func(r any) { current = r.(events.Weather).Main }

	q.deliver(weatherOK())
	u.Tick(apply)
	require.Equal(t, "Clouds", current)

	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "", false))
	assert.Equal(t, OutcomeNone, u.Tick(apply))
	q.deliver(events.NewResponse(events.KindWeatherDataReceived, events.SubjectWeather, "bad", true))
	assert.Equal(t, OutcomeNone, u.Tick(apply))

	assert.Equal(t, "Clouds", current)
	assert.False(t, u.ErrorShown())
	assert.Empty(t, u.ErrorText())
	assert.True(t, u.HasData())
}

func TestRetryBound_ErrorShownExactlyOnce(t *testing.T) {
	u, q, clk := newWeatherUpdater(t, func() bool { return false })

	errors := 0
	maxSeen := 0
	for i := 0; i < 600; i++ {
		if u.Tick(nil) == OutcomeError {
			errors++
		}
		if u.RetryCount() > maxSeen {
			maxSeen = u.RetryCount()
		}
		clk.Advance(100 * time.Millisecond)
	}
	// 60s of ticks covers five 2s retries plus a good stretch after
	assert.Equal(t, DefaultMaxRetries, maxSeen)
	assert.Equal(t, 1, errors)
	assert.True(t, u.ErrorShown())
	assert.Equal(t, MsgNoConnection, u.ErrorText())
	assert.Zero(t, q.count(), "never published while not ready")

	// and still once across a whole extra interval
	for i := 0; i < 70; i++ {
		clk.Advance(10 * time.Second)
		if u.Tick(nil) == OutcomeError {
			errors++
		}
	}
	assert.Equal(t, 1, errors)
	assert.LessOrEqual(t, u.RetryCount(), DefaultMaxRetries)
}

func TestRetry_FastCycleAndStatusText(t *testing.T) {
	u, _, clk := newWeatherUpdater(t, func() bool { return false })

	assert.Equal(t, OutcomeRetrying, u.Tick(nil))
	assert.Equal(t, MsgConnecting, u.StatusText())
	assert.Equal(t, StatusAwaitingReady, u.Status())

	clk.Advance(DefaultRetryDelay - time.Millisecond)
	assert.Equal(t, OutcomeNone, u.Tick(nil))

	clk.Advance(time.Millisecond)
	assert.Equal(t, OutcomeRetrying, u.Tick(nil))
	assert.Equal(t, "Retry 2/5", u.StatusText())
}

func TestRetry_RecoversWhenReady(t *testing.T) {
	ready := false
	u, q, clk := newWeatherUpdater(t, func() bool { return ready })

	u.Tick(nil)
	clk.Advance(DefaultRetryDelay)
	u.Tick(nil)
	require.Equal(t, 2, u.RetryCount())

	ready = true
	clk.Advance(DefaultRetryDelay)
	assert.Equal(t, OutcomeRequested, u.Tick(nil))
	assert.Zero(t, u.RetryCount())
	assert.Equal(t, 1, q.count())
	assert.Empty(t, u.StatusText())
}

func TestRetry_StatusHiddenOnceDataShown(t *testing.T) {
	ready := true
	u, q, clk := newWeatherUpdater(t, func() bool { return ready })
	u.Tick(nil)
	q.deliver(weatherOK())
	u.Tick(nil)

	ready = false
	clk.Advance(10 * time.Minute)
	assert.Equal(t, OutcomeRetrying, u.Tick(nil))
	assert.Empty(t, u.StatusText())
}

func TestRefresh_ResetsRetriesAndRequests(t *testing.T) {
	ready := false
	u, q, _ := newWeatherUpdater(t, func() bool { return ready })
	u.Tick(nil)
	require.Equal(t, 1, u.RetryCount())

	ready = true
	assert.Equal(t, OutcomeRequested, u.Refresh())
	assert.Zero(t, u.RetryCount())
	assert.Equal(t, 1, q.count())
}

func TestAttempt_PublishFailureIsReported(t *testing.T) {
	u, q, clk := newWeatherUpdater(t, nil)
	q.full = true

	assert.Equal(t, OutcomePublishFailed, u.Tick(nil))
	assert.Equal(t, OutcomeNone, u.Tick(nil))

	q.full = false
	clk.Advance(10 * time.Minute)
	assert.Equal(t, OutcomeRequested, u.Tick(nil))
}

func TestClose_IgnoresLaterResponses(t *testing.T) {
	u, q, _ := newWeatherUpdater(t, nil)
	u.Tick(nil)
	u.Close()

	q.deliver(weatherOK())
	assert.Equal(t, OutcomeNone, u.Tick(nil))
	assert.False(t, u.HasData())
}

func TestEmptyOK_AcceptsBareSuccess(t *testing.T) {
	u, err := New(Config{
		Subject:      events.SubjectClock,
		RequestKind:  events.KindTimeSyncRequest,
		ResponseKind: events.KindTimeSyncComplete,
		Interval:     5 * time.Minute,
		EmptyOK:      true,
	})
	require.NoError(t, err)

	q := events.NewQueue(events.DefaultCapacity)
	u.Attach(q)
	q.Begin()
	defer q.End()

	require.Equal(t, OutcomeRequested, u.Tick(nil))
	require.True(t, q.Publish(events.NewResponse(events.KindTimeSyncComplete, events.SubjectClock, "", true)))

	assert.Eventually(t, func() bool { return u.Tick(nil) == OutcomeApplied }, time.Second, 5*time.Millisecond)
	assert.True(t, u.HasData())
}
