package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/charleschow/deskcards/internal/adapters/inbound/link"
	"github.com/charleschow/deskcards/internal/adapters/outbound/lastfm_http"
	"github.com/charleschow/deskcards/internal/adapters/outbound/timesync"
	"github.com/charleschow/deskcards/internal/adapters/outbound/weather_http"
	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/core/cards"
	"github.com/charleschow/deskcards/internal/core/display"
	"github.com/charleschow/deskcards/internal/core/input"
	"github.com/charleschow/deskcards/internal/core/navigation"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/fanout"
	"github.com/charleschow/deskcards/internal/service"
	"github.com/charleschow/deskcards/internal/store"
	"github.com/charleschow/deskcards/internal/telemetry"
)

// Device owns every long-lived piece of the runtime: the queue, the card
// store, the IO dispatcher, the link monitor and the UI stack.
type Device struct {
	cfg *config.Config

	Queue      *events.Queue
	Store      *store.Store
	Clock      *timesync.Clock
	Monitor    *link.Monitor
	Dispatcher *service.Dispatcher
	Stack      *navigation.Stack
	Mirror     *fanout.Server

	in  io.Reader
	wg  sync.WaitGroup
	err chan error
}

// Options override the terminal streams, mostly for tests.
type Options struct {
	In  io.Reader // button lines; nil disables input
	Out io.Writer // nil means stdout with screen clearing

	// Collaborators replaces the HTTP clients built from cfg.
	Collaborators *service.Collaborators

	// Ready replaces the link monitor's predicate.
	Ready func() bool
}

// New wires the device from cfg. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (*Device, error) {
	d := &Device{cfg: cfg, in: opts.In, err: make(chan error, 1)}

	// ── Queue ──────────────────────────────────────────────────
	var qopts []events.Option
	if cfg.QueuePublishTimeout > 0 {
		qopts = append(qopts, events.WithPublishTimeout(cfg.QueuePublishTimeout))
	}
	d.Queue = events.NewQueue(cfg.QueueCapacity, qopts...)

	// ── Card store ─────────────────────────────────────────────
	st, err := store.Open(cfg.CardsDBPath, d.Queue)
	if err != nil {
		return nil, fmt.Errorf("card store: %w", err)
	}
	d.Store = st

	if err := d.seed(); err != nil {
		st.Close()
		return nil, err
	}

	// ── Collaborators ──────────────────────────────────────────
	d.Clock = timesync.NewClock()
	collab := service.Collaborators{
		Weather:    weather_http.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.FetchTimeout),
		NowPlaying: lastfm_http.NewClient(cfg.LastFMBaseURL, cfg.LastFMAPIKey, cfg.FetchTimeout),
		TimeSync:   timesync.NewClient(cfg.TimeSourceURL, d.Clock, cfg.FetchTimeout),
	}
	if opts.Collaborators != nil {
		collab = *opts.Collaborators
	}
	d.Dispatcher = service.NewDispatcher(d.Queue, collab, cfg.FetchTimeout, cfg.IOWorkers)
	d.Dispatcher.Attach()

	// ── Link ───────────────────────────────────────────────────
	d.Monitor = link.NewMonitor(cfg.LinkProbeAddr, cfg.LinkProbeInterval, d.Queue)
	ready := d.Monitor.Ready
	if opts.Ready != nil {
		ready = opts.Ready
	}

	// ── Display ────────────────────────────────────────────────
	theme := display.DefaultTheme()
	if cfg.ThemePath != "" {
		t, err := display.LoadTheme(cfg.ThemePath)
		if err != nil {
			telemetry.Warnf("theme %s: %v (using default)", cfg.ThemePath, err)
		} else {
			theme = t
		}
	}
	out, clearScreen := opts.Out, false
	if out == nil {
		out, clearScreen = os.Stdout, true
	}
	renderer := display.NewTerminalRenderer(out, display.NewStyle(theme), cfg.ScreenWidth, cfg.ScreenHeight, clearScreen)

	// ── Cards ──────────────────────────────────────────────────
	factory := cards.NewFactory(cards.Deps{
		Queue:    d.Queue,
		Ready:    ready,
		Now:      d.Clock.Now,
		Mono:     time.Now,
		TextCols: renderer.Cols(),
	})
	d.Stack = navigation.NewStack(renderer, cfg.TickInterval)
	d.Stack.Attach(d.Queue, d.Store.List, factory.Build)

	initial, err := d.Store.List(context.Background())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("list cards: %w", err)
	}
	built, err := factory.Build(initial)
	if err != nil {
		telemetry.Warnf("cards: %v", err)
	}
	d.Stack.Replace(built)

	// ── Mirror ─────────────────────────────────────────────────
	if cfg.MirrorAddr != "" {
		d.Mirror = fanout.NewServer(d.Queue, d.Store)
	}

	return d, nil
}

func (d *Device) seed() error {
	seed, err := config.LoadCardSeed(d.cfg.CardsSeedPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			telemetry.Warnf("card seed %s: %v (using defaults)", d.cfg.CardsSeedPath, err)
		}
		seed = config.DefaultCards()
	}
	if _, err := d.Store.Seed(context.Background(), seed); err != nil {
		return fmt.Errorf("seed cards: %w", err)
	}
	return nil
}

// Run starts the queue and every goroutine, then drives the UI loop until ctx
// is done. The returned error is the first background failure, if any.
func (d *Device) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.Queue.Begin()
	defer d.Queue.End()

	d.Dispatcher.Start(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Monitor.Run(ctx)
	}()

	if d.Mirror != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.Mirror.ListenAndServe(ctx, d.cfg.MirrorAddr); err != nil {
				d.fail(fmt.Errorf("mirror: %w", err))
				cancel()
			}
		}()
	}

	var presses <-chan input.Button
	if d.in != nil {
		reader := input.NewLineReader(d.in)
		presses = reader.Presses()
		go reader.Run(ctx)
	}

	telemetry.Infof("Device running  cards=%d  tick=%s", len(d.Stack.Cards()), d.cfg.TickInterval)
	d.Stack.Run(ctx, presses)

	cancel()
	d.Stack.Close()
	d.wg.Wait()
	d.Dispatcher.Wait()

	select {
	case err := <-d.err:
		return err
	default:
		return nil
	}
}

func (d *Device) fail(err error) {
	select {
	case d.err <- err:
	default:
	}
}

func (d *Device) Close() error {
	return d.Store.Close()
}
