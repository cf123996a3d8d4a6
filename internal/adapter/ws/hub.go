// Package ws implements the WebSocket adapter that pushes task updates to
// connected clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotFunc produces the message sent to a client right after it connects.
type SnapshotFunc func(ctx context.Context) (Message, error)

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	mu     sync.Mutex // serializes writes
}

func (c *conn) write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(ctx, data)
}

func (c *conn) writeLocked(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Hub manages all active WebSocket connections and broadcasts messages.
type Hub struct {
	mu       sync.RWMutex
	conns    map[*conn]struct{}
	origins  []string
	snapshot SnapshotFunc
}

// NewHub creates a new WebSocket hub. allowedOrigins is the comma-separated
// list of browser origins that may connect; "*" or empty accepts any origin.
func NewHub(allowedOrigins string) *Hub {
	h := &Hub{conns: make(map[*conn]struct{})}
	for o := range strings.SplitSeq(allowedOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			h.origins = nil
			break
		}
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		if o != "" {
			h.origins = append(h.origins, o)
		}
	}
	return h
}

// SetSnapshot registers the function that greets new connections.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshot = fn
}

// HandleWS upgrades the request to a WebSocket connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// The request context ends when the handler returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, cancel: cancel}

	// Register before taking the snapshot so no broadcast in between is
	// missed. Holding the write lock queues those broadcasts behind it.
	c.mu.Lock()
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	err = h.greet(ctx, c)
	c.mu.Unlock()
	if err != nil {
		slog.Warn("websocket snapshot failed", "error", err)
		h.remove(c)
		_ = ws.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// Read loop detects disconnects. Client messages are ignored.
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// greet sends the snapshot to c. The caller holds c.mu.
func (h *Hub) greet(ctx context.Context, c *conn) error {
	if h.snapshot == nil {
		return nil
	}
	msg, err := h.snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.writeLocked(ctx, data)
}

// Broadcast sends a message to all connected clients. Clients whose write
// fails are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(ctx, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*conn]struct{})
	h.mu.Unlock()

	for c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}
