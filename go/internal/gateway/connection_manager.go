package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections for room feeds
type ConnectionManager struct {
	// Connection pools organized by room ID
	roomConnections map[string]map[*Connection]bool
	// One shared store subscription per watched room
	feeds map[string]*roomFeed
	mu    sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	rooms  RoomsApp
	clocks ClocksApp

	broadcastCh chan BroadcastMessage
	ctx         context.Context
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID       string
	ClientID string
	RoomID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool

	// StateRefreshInterval re-sends room_state so clients resync their
	// countdowns; zero disables it.
	StateRefreshInterval time.Duration
	CommandTimeout       time.Duration
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	RoomID       string
	Event        *RoomEvent
	ConnectionID string // Optional: if set, only send to this connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		CommandTimeout: 5 * time.Second,
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, rooms RoomsApp, clocksApp ClocksApp, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		feeds:           make(map[string]*roomFeed),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		rooms:       rooms,
		clocks:      clocksApp,
		broadcastCh: make(chan BroadcastMessage, 1000),
		ctx:         context.Background(),
	}
}

// Start processes broadcast messages until ctx is cancelled. Room feeds
// started afterwards are bound to ctx.
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.mu.Lock()
	cm.ctx = ctx
	cm.mu.Unlock()

	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

func (cm *ConnectionManager) baseContext() context.Context {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.ctx
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, clientID, roomID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("client_id", clientID).
		Str("room_id", roomID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection and attaches it to the room feed. The
// latest room state, if any, is queued right away.
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.RoomID] == nil {
		cm.roomConnections[conn.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.RoomID][conn] = true

	feed, ok := cm.feeds[conn.RoomID]
	if !ok {
		feed = newRoomFeed(cm.ctx, conn.RoomID)
		cm.feeds[conn.RoomID] = feed
		go cm.runFeed(feed)
	}
	feed.refs++
	if feed.last != nil {
		conn.Send <- feed.last
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID).
		Int("total_connections", len(cm.roomConnections[conn.RoomID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection and releases the room feed once
// nobody watches the room.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roomConnections[conn.RoomID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}

	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.roomConnections, conn.RoomID)
	}
	if feed, ok := cm.feeds[conn.RoomID]; ok {
		feed.refs--
		if feed.refs <= 0 {
			feed.cancel()
			delete(cm.feeds, conn.RoomID)
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("client_id", conn.ClientID).
		Str("room_id", conn.RoomID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.roomConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// BroadcastToRoom sends an event to all connections of a room
func (cm *ConnectionManager) BroadcastToRoom(roomID string, event *RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Event: event}:
	default:
		log.Warn().Str("room_id", roomID).Msg("broadcast channel full, dropping message")
	}
}

// SendToConnection sends an event to one connection of a room
func (cm *ConnectionManager) SendToConnection(roomID, connectionID string, event *RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: roomID, Event: event, ConnectionID: connectionID}:
	default:
		log.Warn().
			Str("room_id", roomID).
			Str("connection_id", connectionID).
			Msg("broadcast channel full, dropping connection message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	delivered := 0

	// Sends happen under the lock so unregisterConnection cannot close a
	// channel mid-send; they never block.
	cm.mu.Lock()
	if message.ConnectionID == "" && message.Event.Type != EventTypeCommandError {
		if feed, ok := cm.feeds[message.RoomID]; ok {
			feed.last = eventData
		}
	}
	for conn := range cm.roomConnections[message.RoomID] {
		if message.ConnectionID != "" && conn.ID != message.ConnectionID {
			continue
		}
		select {
		case conn.Send <- eventData:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.Unlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("client_id", conn.ClientID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_id", message.RoomID).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// ConnectionStats summarises active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
	Feeds            int            `json:"feeds"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:     len(cm.roomConnections),
		RoomConnections: make(map[string]int, len(cm.roomConnections)),
		Feeds:           len(cm.feeds),
	}
	for roomID, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[roomID] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
