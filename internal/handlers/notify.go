package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/models"
	"roomchat-service/internal/ws"
)

// NotifyHandler receives cross-process room-deleted notifications from an API
// tier running without the realtime hub in-process.
type NotifyHandler struct {
	hub *ws.Hub
	log *logrus.Logger
}

// NewNotifyHandler constructs a NotifyHandler.
func NewNotifyHandler(hub *ws.Hub, log *logrus.Logger) *NotifyHandler {
	return &NotifyHandler{hub: hub, log: log}
}

// RoomDeleted handles POST /internal/room-deleted. It fans the deletion out to
// every live connection in the room and reports how many it reached.
func (h *NotifyHandler) RoomDeleted(c *gin.Context) {
	var req struct {
		RoomID  string `json:"roomId" binding:"required"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}
	if req.Message == "" {
		req.Message = "This room has been deleted by the admin"
	}

	notified := h.hub.Broadcast(req.RoomID, models.RoomDeletedEvent(req.RoomID, req.Message))
	h.log.WithFields(logrus.Fields{"room_id": req.RoomID, "notified": notified}).Info("room-deleted fanout")

	c.JSON(http.StatusOK, gin.H{"success": true, "socketsNotified": notified})
}

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
