package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/bjtj/bjtj/internal/auth"
	"github.com/bjtj/bjtj/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

var ErrConnectionClosed = websocket.ErrCloseSent

// ViewMessage is the frame the hub pushes after every applied action.
type ViewMessage struct {
	Type string           `json:"type"`
	View *game.PublicView `json:"view"`
}

// Connection represents a WebSocket subscriber for one player's view stream.
type Connection struct {
	conn      *websocket.Conn
	send      chan *ViewMessage
	playerID  string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, playerID string, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:     conn,
		send:     make(chan *ViewMessage, 16),
		playerID: playerID,
		logger:   logger.WithPrefix("conn"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Send queues a view frame for the client. A full buffer drops the
// connection; the client can reconnect and SYNC.
func (c *Connection) Send(msg *ViewMessage) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown
			c.logger.Debug("Attempted to send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "player", c.playerID)
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// readPump drains the socket so close frames and pongs are processed.
// Clients never send application data over the stream.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to marshal view frame", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Hub fans engine events out to WebSocket subscribers. It implements
// game.EventSubscriber: every applied action pushes the resulting
// PublicView to that player's connections.
type Hub struct {
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
}

// NewHub creates a hub ready to accept subscribers.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("hub"),
	}
}

// Run handles connection lifecycle until the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			total := len(h.connections)
			h.mu.Unlock()
			h.logger.Info("Client connected", "player", conn.playerID, "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				_ = conn.Close()
			}
			total := len(h.connections)
			h.mu.Unlock()
			h.logger.Info("Client disconnected", "player", conn.playerID, "total", total)

		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				_ = conn.Close()
			}
			h.connections = make(map[*Connection]bool)
			h.mu.Unlock()
			return ctx.Err()
		}
	}
}

// OnEvent implements game.EventSubscriber.
func (h *Hub) OnEvent(event game.GameEvent) {
	applied, ok := event.(game.ActionAppliedEvent)
	if !ok {
		return
	}
	h.SendToPlayer(applied.PlayerID, &ViewMessage{Type: "view", View: applied.View})
}

// ConnectedPlayers returns the player IDs with at least one open stream.
func (h *Hub) ConnectedPlayers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var players []string
	for conn := range h.connections {
		players = append(players, conn.playerID)
	}
	return players
}

// SendToPlayer pushes a frame to every connection held by a player.
func (h *Hub) SendToPlayer(playerID string, msg *ViewMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		if conn.playerID == playerID {
			if err := conn.Send(msg); err != nil {
				h.logger.Error("Failed to push view", "error", err, "player", playerID)
			}
		}
	}
}

// ServeHTTP handles WebSocket upgrade requests on /ws?id=0x...
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("id")
	if !auth.ValidPlayerID(playerID) {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, playerID, h.logger)
	h.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		h.unregister <- client
	}()
}
