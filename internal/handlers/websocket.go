package handlers

import (
	"spamguard/server/internal/middleware"
	ws "spamguard/server/internal/websocket"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RealtimeHandler attaches authenticated websocket connections to the hub.
type RealtimeHandler struct {
	hub *ws.Hub
}

func NewRealtimeHandler(hub *ws.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Upgrade checks if the request should be upgraded to WebSocket
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.NewError(fiber.StatusUpgradeRequired, "WebSocket upgrade required")
}

// Connect returns the handler serving an upgraded connection. It expects the
// auth middleware to have run.
func (h *RealtimeHandler) Connect() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(middleware.UserIDLocal).(string)
		if userID == "" {
			c.Close()
			return
		}

		client := ws.NewClient(userID, c, h.hub)
		if !h.hub.Join(client) {
			c.Close()
			return
		}

		// Start read and write pumps in separate goroutines
		go client.WritePump()
		client.ReadPump() // This blocks until connection closes
	})
}

// Health reports liveness and the number of connected feed clients
func Health(hub *ws.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clients := 0
		if hub != nil {
			clients = hub.GetOnlineCount()
		}
		return respond(c, fiber.StatusOK, fiber.Map{
			"status":    "ok",
			"wsClients": clients,
		}, "OK")
	}
}
