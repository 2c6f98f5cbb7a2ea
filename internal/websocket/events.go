package websocket

import "time"

// EventType represents different WebSocket event types
type EventType string

const (
	// Connection events
	EventConnect EventType = "connect"

	// Keepalive initiated by the client
	EventPing EventType = "ping"
	EventPong EventType = "pong"

	// A number in the user's address book was reported as spam
	EventSpamReported EventType = "spam_reported"

	// Error events
	EventError EventType = "error"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectPayload is sent once after the connection is registered
type ConnectPayload struct {
	UserID string `json:"userId"`
}

// SpamReportedPayload names the number that was reported
type SpamReportedPayload struct {
	Phone string `json:"phone"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IncomingMessage represents messages received from clients
type IncomingMessage struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}
