package fanout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/events"
	"github.com/charleschow/deskcards/internal/telemetry"
)

const (
	clientSendBuf = 64
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// CardStore is the card configuration the HTTP API edits.
type CardStore interface {
	List(ctx context.Context) ([]config.CardConfig, error)
	Add(ctx context.Context, c config.CardConfig) (config.CardConfig, error)
	Remove(ctx context.Context, id string) error
	Move(ctx context.Context, id string, index int) error
	SetConfig(ctx context.Context, id, value, name string) error
}

type mirrorClient struct {
	kinds map[events.Kind]bool // nil means everything
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
}

func (c *mirrorClient) wants(k events.Kind) bool {
	return c.kinds == nil || c.kinds[k]
}

// Server mirrors queue events to WebSocket clients and serves the card API.
type Server struct {
	mu      sync.Mutex
	clients map[*mirrorClient]struct{}
	store   CardStore
}

// NewServer subscribes to q. store may be nil, which disables /api/cards.
func NewServer(q interface{ Subscribe(events.Callback) }, store CardStore) *Server {
	s := &Server{
		clients: make(map[*mirrorClient]struct{}),
		store:   store,
	}
	q.Subscribe(s.forward)
	return s
}

// forward runs on the queue consumer. It serializes the event and enqueues
// it to each client's send channel without blocking.
func (s *Server) forward(evt events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}

	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return
	}

	for c := range s.clients {
		if !c.wants(evt.Kind) {
			continue
		}
		select {
		case c.send <- data:
		default:
			telemetry.Metrics.MirrorDrops.Inc()
			telemetry.Debugf("fanout: dropping %s for slow client %s", evt.Kind, c.conn.RemoteAddr())
		}
	}
}

// HandleWS upgrades to a WebSocket. ?kinds=weather_request,wifi_connected
// limits what the client receives.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var kinds map[events.Kind]bool
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		kinds = map[events.Kind]bool{}
		for _, k := range strings.Split(raw, ",") {
			kind := events.Kind(strings.TrimSpace(k))
			if !kind.Valid() {
				http.Error(w, "unknown kind "+string(kind), http.StatusBadRequest)
				return
			}
			kinds[kind] = true
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &mirrorClient{
		kinds: kinds,
		conn:  conn,
		send:  make(chan []byte, clientSendBuf),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	telemetry.Metrics.MirrorClients.Inc()
	telemetry.Infof("fanout: client connected %s", conn.RemoteAddr())

	go s.writePump(c)
	go s.readPump(c)
}

// ClientCount is the number of connected mirror clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// writePump owns the client: on exit it removes it from the map, so forward
// never sends to a stale channel, and closes the connection.
func (s *Server) writePump(c *mirrorClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error: %v", err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads pongs and close frames. It signals writePump via c.done
// and never closes c.send.
func (s *Server) readPump(c *mirrorClient) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *mirrorClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Metrics.MirrorClients.Dec()
	telemetry.Infof("fanout: client disconnected %s", c.conn.RemoteAddr())
}

// Handler routes /ws and the card API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	s.registerAPI(mux)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	telemetry.Infof("fanout: server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
