package websocket

import (
	"net/http"
	"time"

	"billing-service/internal/events"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the client domains are fixed
		return true
	},
}

type WebSocketHandler struct {
	hub    *events.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *events.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated request to a websocket and
// attaches it to the events hub. Authentication happens in the auth
// middleware; browsers pass the token as a query parameter.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := events.NewClient(h.hub, conn, userID, h.logger)
	client.Register()
}

// GetStats reports live connection counts.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	response.Success(c, http.StatusOK, "websocket stats", map[string]interface{}{
		"connections": h.hub.ConnectedClients(userID),
		"timestamp":   time.Now().UTC(),
	})
}
