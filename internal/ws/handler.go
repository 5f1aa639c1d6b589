// internal/ws/handler.go
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"call-service/internal/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WSHandler struct {
	hub       *Hub
	validator middleware.TokenValidator
	logger    *zap.Logger
}

func NewWSHandler(hub *Hub, validator middleware.TokenValidator, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		validator: validator,
		logger:    logger,
	}
}

// HandleWebSocket godoc
// @Summary      Signaling WebSocket
// @Description  Opens the real-time presence/signaling connection
// @Tags         websocket
// @Param        token query string true "JWT Access Token"
// @Success      101 {string} string "Switching Protocols"
// @Failure      401 {object} map[string]string
// @Router       /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Credential comes as a query param (browsers cannot set headers on
	// WebSocket handshakes); a bad or missing one refuses the connection.
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	userID, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		h.logger.Warn("Rejected socket with invalid token", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, userID)
	h.hub.Register(client)
	middleware.RecordWebSocketConnection()

	go client.writePump()
	go h.readPump(client)
}

func (h *WSHandler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		middleware.RecordWebSocketDisconnection()
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var msg ControlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Warn("Failed to parse control message", zap.Error(err))
			continue
		}

		h.handleControl(client, &msg)
	}
}

func (h *WSHandler) handleControl(client *Client, msg *ControlMessage) {
	switch msg.Type {
	case ControlJoinCall:
		if msg.CallID == "" {
			return
		}
		h.hub.JoinRoom(msg.CallID, client)
		h.logger.Debug("Client joined call room",
			zap.String("userId", client.userID.String()),
			zap.String("callId", msg.CallID))

	case ControlLeaveCall:
		if msg.CallID == "" {
			return
		}
		h.hub.LeaveRoom(msg.CallID, client)

	case ControlSignal:
		// Opaque session-negotiation relay between room members; the
		// server never inspects the payload.
		if msg.CallID == "" {
			return
		}
		h.hub.SendToRoom(msg.CallID, client, NewEvent(EventSignal, SignalPayload{
			CallID: msg.CallID,
			FromID: client.userID.String(),
			Data:   msg.Data,
		}))

	default:
		h.logger.Warn("Unknown control message type", zap.String("type", msg.Type))
	}
}
