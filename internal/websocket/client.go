package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	ID   string // User ID
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   userID,
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// ReadPump handles incoming messages from the client
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn(context.Background(), "websocket read error", "user_id", c.ID, "error", err)
			}
			break
		}
		c.handleIncoming(message)
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Warn(context.Background(), "websocket write error", "user_id", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleIncoming answers client frames. The feed is one-way apart from
// application-level pings.
func (c *Client) handleIncoming(raw []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("bad_message", "Message is not valid JSON")
		return
	}

	switch msg.Type {
	case EventPing:
		c.SendMessage(WSMessage{Type: EventPong, Timestamp: time.Now()})
	default:
		c.sendError("unsupported_event", "Unsupported event type: "+string(msg.Type))
	}
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(WSMessage{
		Type:      EventError,
		Payload:   ErrorPayload{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// SendMessage queues a message for the client. It reports false when the
// client is no longer registered or its send buffer is full.
func (c *Client) SendMessage(msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return c.Hub.deliver(c, data)
}
