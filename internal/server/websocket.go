package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weatherbird/provisioning/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Outbound messages buffered per client before it is dropped
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The portal is reached by raw IP or the mDNS hostname; any origin may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub maintains the set of active event clients and broadcasts messages to
// them.
type Hub struct {
	mu        sync.Mutex
	clients   map[*Client]bool
	broadcast chan []byte
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// NewHub creates an idle hub. Run must be started before Broadcast delivers.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan []byte, 64),
	}
}

// Run fans broadcast messages out to clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logging.Warn("Dropping slow event client", zap.String("remote_addr", client.remoteAddr))
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every client. It never blocks; a message is
// dropped when the hub is backed up.
func (h *Hub) Broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to encode event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("Event hub busy, dropping event", zap.String("type", msg.Type))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	logging.Debug("Event client connected", zap.String("remote_addr", c.remoteAddr))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		logging.Debug("Event client disconnected", zap.String("remote_addr", c.remoteAddr))
	}
}

// handleEvents upgrades to a websocket and streams transitions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		hub:        s.hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}
	if data, err := json.Marshal(newSnapshotMessage(s.prov.LiveStatus(r.Context()))); err == nil {
		client.send <- data
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound messages and notices when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("websocket read error", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
