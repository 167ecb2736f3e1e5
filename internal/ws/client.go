package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the peer. Clients only listen.
	maxMessageSize = 512
)

// NewClient builds a client with a buffered send queue.
func NewClient(playerID string, conn *websocket.Conn) *Client {
	return &Client{
		PlayerID: playerID,
		Conn:     conn,
		send:     make(chan []byte, 256),
	}
}

// Start launches the read and write pumps for the connection.
func (c *Client) Start(manager *ConnectionManager, logger *zap.Logger) {
	log := logger.With(zap.String("playerID", c.PlayerID))
	go c.writePump(log)
	go c.readPump(manager, log)
}

// readPump drains inbound frames. Players do not send application messages
// over the socket; reading only services pings and detects closure.
func (c *Client) readPump(manager *ConnectionManager, logger *zap.Logger) {
	defer func() {
		manager.UnregisterClient(c.PlayerID)
		_ = c.Conn.Close()
		logger.Debug("readPump finished")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump moves messages from the send queue onto the wire and keeps the
// connection alive with pings.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		logger.Debug("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
