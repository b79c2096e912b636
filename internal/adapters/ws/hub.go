// Package ws streams live encounter projections over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zaresol/staggerline/internal/adapters/repository"
	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/pkg/logger"
	"github.com/Zaresol/staggerline/pkg/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// DefaultPushInterval is the broadcast cadence when none is configured.
	DefaultPushInterval = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Projector supplies the current report for an open encounter.
type Projector interface {
	Series(ctx context.Context, id string) (series.Report, error)
}

// Message is the JSON envelope pushed to clients on every tick. Event is
// "report" while the encounter is open and "closed" once it disappears.
type Message struct {
	Event string         `json:"event"`
	Data  *series.Report `json:"data,omitempty"`
}

// Hub fans projected reports out to WebSocket subscribers. Each client
// follows a single encounter; every interval the hub projects each
// encounter that has at least one subscriber and pushes the result.
type Hub struct {
	projector Projector
	interval  time.Duration
	log       logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client is one connected subscriber. closed is guarded by the hub's
// mutex; once set, send is closed and must not be written to.
type client struct {
	encounterID string
	conn        *websocket.Conn
	send        chan []byte
	closed      bool
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithPushInterval sets the broadcast cadence.
func WithPushInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// New creates a Hub that projects through p.
func New(p Projector, opts ...Option) *Hub {
	h := &Hub{
		projector: p,
		interval:  DefaultPushInterval,
		clients:   make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Named("ws")
	}
	return h
}

// Run starts the broadcast ticker loop. It blocks until ctx is cancelled,
// then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(ctx)
		}
	}
}

// ServeHTTP upgrades the connection and subscribes the client to the
// encounter named in the path. The current report is pushed immediately so
// the chart renders without waiting a full tick. Blocks until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")
	if _, err := h.projector.Series(r.Context(), encounterID); err != nil {
		http.Error(w, "unknown encounter", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		encounterID: encounterID,
		conn:        conn,
		send:        make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.buildMessage(r.Context(), encounterID); err == nil {
		h.push(c, data)
	}

	go c.writePump()
	c.readPump() // blocks until the connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	metrics.UpdateWSClients(len(h.clients))
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closed = true
		close(c.send)
		metrics.UpdateWSClients(len(h.clients))
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(ctx context.Context) {
	h.mu.RLock()
	byEncounter := make(map[string][]*client)
	for c := range h.clients {
		byEncounter[c.encounterID] = append(byEncounter[c.encounterID], c)
	}
	h.mu.RUnlock()

	for encounterID, targets := range byEncounter {
		data, err := h.buildMessage(ctx, encounterID)
		if errors.Is(err, repository.ErrNotFound) {
			// Encounter was closed; tell subscribers and drop them.
			closed, merr := json.Marshal(Message{Event: "closed"})
			if merr != nil {
				continue
			}
			for _, c := range targets {
				h.push(c, closed)
				h.unregister(c)
			}
			continue
		}
		if err != nil {
			h.log.Warn(ctx, "live projection failed",
				logger.String("encounterID", encounterID),
				logger.Error(err),
			)
			continue
		}
		for _, c := range targets {
			h.push(c, data)
		}
	}
}

// push hands data to a client, dropping the client when its buffer is
// full. A subscriber that cannot keep up with the tick rate is better
// disconnected than allowed to stall the hub.
//
// The send happens under the read lock so it cannot interleave with
// unregister closing the channel; the client may have disconnected
// between snapshotting the client set and reaching its send channel.
func (h *Hub) push(c *client, data []byte) {
	h.mu.RLock()
	if c.closed {
		h.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		h.unregister(c)
	}
}

func (h *Hub) buildMessage(ctx context.Context, encounterID string) ([]byte, error) {
	report, err := h.projector.Series(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: "report", Data: &report})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.closed = true
		close(c.send)
		delete(h.clients, c)
	}
	metrics.UpdateWSClients(0)
}

// writePump drains the client's send channel onto the connection and
// sends periodic pings. Runs in its own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames to detect disconnects. Blocks until
// the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
