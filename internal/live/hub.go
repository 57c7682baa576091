// Package live pushes calendar changes to connected websocket clients.
//
// Clients connect to the hub's handler with an optional ?userId= query
// parameter. Messages addressed to specific users are delivered only to
// clients registered under one of those ids; unaddressed (nil) messages go
// to everyone.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type envelope struct {
	msg        Message
	recipients []int64
}

type client struct {
	conn   *websocket.Conn
	userID int64
}

// Hub manages websocket clients and fans out messages.
type Hub struct {
	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	broadcast chan envelope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan envelope, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start runs the broadcast loop until Stop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop disconnects every client and waits for the broadcast loop to exit.
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.Lock()
	for c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	h.clientsMu.Unlock()

	h.wg.Wait()
}

// Notify queues payload for delivery. It never blocks: when the queue is
// full the message is dropped.
func (h *Hub) Notify(kind string, recipients []int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal live message", "type", kind, "error", err)
		return
	}

	env := envelope{
		msg:        Message{Type: kind, Timestamp: time.Now().UTC(), Data: data},
		recipients: recipients,
	}

	select {
	case h.broadcast <- env:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("live broadcast queue full, dropping message", "type", kind)
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case env := <-h.broadcast:
			data, err := json.Marshal(env.msg)
			if err != nil {
				h.logger.Error("failed to marshal live frame", "error", err)
				continue
			}

			for _, c := range h.targets(env.recipients) {
				ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
				err := c.conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					h.logger.Debug("failed to send to live client", "user_id", c.userID, "error", err)
					h.removeClient(c)
				}
			}
		}
	}
}

// targets snapshots the clients a message should reach. A nil recipient
// list means every client; an empty one means none.
func (h *Hub) targets(recipients []int64) []*client {
	want := make(map[int64]bool, len(recipients))
	for _, id := range recipients {
		want[id] = true
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if recipients == nil || want[c.userID] {
			out = append(out, c)
		}
	}
	return out
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, `{"error":"userId must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		userID = id
	}

	if h.ctx.Err() != nil {
		http.Error(w, `{"error":"live updates unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, userID: userID}

	h.clientsMu.Lock()
	if h.ctx.Err() != nil {
		h.clientsMu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Info("live client connected", "user_id", userID, "clients", count)

	h.readLoop(c)
}

// readLoop discards client frames; it returns when the connection closes.
func (h *Hub) readLoop(c *client) {
	defer h.removeClient(c)

	for {
		if _, _, err := c.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.clientsMu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("live client disconnected", "user_id", c.userID, "clients", count)
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
