package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wayguard/pkg/model"
)

const (
	streamSendBuffer = 8
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 45 * time.Second // must be shorter than streamPongWait
)

// StreamHub pushes every emitted alert to all connected websocket clients.
// It is registered as an alert sink; a slow or dead client loses alerts
// rather than delaying anyone else.
type StreamHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan model.Alert
}

// NewStreamHub creates an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Overlay clients connect from file:// or a dev server.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  slog.With("component", "stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *StreamHub) Name() string { return "stream" }

// ClientCount returns the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Deliver queues the alert for every connected client. Clients whose send
// buffer is full skip this alert.
func (h *StreamHub) Deliver(_ context.Context, a model.Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- a:
		default:
			h.logger.Warn("slow stream client, alert dropped", "alert_id", a.ID)
		}
	}
	return nil
}

// HandleStream upgrades the request to a websocket and streams alerts until
// the client disconnects.
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan model.Alert, streamSendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("stream client connected", "remote", r.RemoteAddr, "clients", count)
	go h.writeLoop(c)
	h.readLoop(c)
	h.logger.Info("stream client disconnected", "remote", r.RemoteAddr)
}

// readLoop consumes (and discards) client messages until the connection
// dies. Its only job is detecting disconnects and answering pings.
func (h *StreamHub) readLoop(c *streamClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(c *streamClient) {
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case a, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteJSON(a); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop unregisters the client and closes its connection. Closing the send
// channel under the mutex keeps Deliver from writing into it afterwards.
func (h *StreamHub) drop(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Close disconnects all clients and rejects future ones.
func (h *StreamHub) Close() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	h.mu.Unlock()
	return nil
}
