// Package websocket runs the spam alert feed: connected users are told when
// a number in their address book is reported as spam.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"spamguard/server/internal/logging"
	"spamguard/server/internal/metrics"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients mapped by user ID
	clients map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	logger  logging.Logger
	metrics *metrics.Metrics

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Join hands client to the running hub. It reports false once the hub has
// stopped, in which case the client was not registered.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave hands client back to the hub. After shutdown it returns immediately.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	// If user already has a connection, close the old one
	if existing, ok := h.clients[client.ID]; ok {
		close(existing.Send)
	}
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetClients(count)
	h.logger.Debug(context.Background(), "websocket client connected", "user_id", client.ID)

	client.SendMessage(WSMessage{
		Type:      EventConnect,
		Payload:   ConnectPayload{UserID: client.ID},
		Timestamp: time.Now(),
	})
}

// unregisterClient removes a client unless it was already replaced by a
// newer connection of the same user.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok && current == client {
		h.metrics.SetClients(count)
		h.logger.Debug(context.Background(), "websocket client disconnected", "user_id", client.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.metrics.SetClients(0)
}

// BroadcastToUsers sends a message to multiple users. Users without a live
// connection are skipped; a full send buffer drops the message.
func (h *Hub) BroadcastToUsers(userIDs []string, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error(context.Background(), "failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		if client, ok := h.clients[userID]; ok {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn(context.Background(), "dropping message for slow client", "user_id", userID)
			}
		}
	}
}

// deliver queues data for client if it is still the registered connection of
// its user. Send channels are only closed under the write lock, so holding
// the read lock makes the send safe.
func (h *Hub) deliver(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.ID] != client {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// SpamReported notifies the owners of address books holding phone.
func (h *Hub) SpamReported(ownerIDs []string, phone string) {
	h.BroadcastToUsers(ownerIDs, WSMessage{
		Type:      EventSpamReported,
		Payload:   SpamReportedPayload{Phone: phone},
		Timestamp: time.Now(),
	})
}

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[userID]
	return ok
}

// GetOnlineCount returns the number of currently connected clients
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
