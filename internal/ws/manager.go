// Package ws manages WebSocket connections through which players receive
// game update events. Delivery is best-effort; game state transitions never
// depend on it.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one WebSocket connection bound to a player.
type Client struct {
	PlayerID string
	Conn     *websocket.Conn
	send     chan []byte
}

// ConnectionManager tracks the active connection per player. A new
// connection for an already connected player replaces the old one.
type ConnectionManager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan string
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewConnectionManager creates and starts a connection manager.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		logger:     logger.Named("ConnectionManager"),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info("Connection manager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if oldClient, ok := m.clients[client.PlayerID]; ok {
				m.logger.Info("Replacing existing connection", zap.String("playerID", client.PlayerID))
				close(oldClient.send)
				_ = oldClient.Conn.Close()
			}
			m.clients[client.PlayerID] = client
			m.mu.Unlock()
			m.logger.Debug("Client registered", zap.String("playerID", client.PlayerID))

		case playerID := <-m.unregister:
			m.mu.Lock()
			if client, ok := m.clients[playerID]; ok {
				delete(m.clients, playerID)
				close(client.send)
			}
			m.mu.Unlock()
			m.logger.Debug("Client unregistered", zap.String("playerID", playerID))
		}
	}
}

// RegisterClient registers a new client connection.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes the player's connection.
func (m *ConnectionManager) UnregisterClient(playerID string) {
	m.unregister <- playerID
}

// SendToPlayer queues a message for the player. Returns false when the
// player is offline or their send queue is full.
func (m *ConnectionManager) SendToPlayer(playerID string, message []byte) bool {
	m.mu.RLock()
	client, ok := m.clients[playerID]
	m.mu.RUnlock()

	if !ok {
		m.logger.Debug("Player offline", zap.String("playerID", playerID))
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		m.logger.Warn("Send queue full, dropping message", zap.String("playerID", playerID))
		return false
	}
}
