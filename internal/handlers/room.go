package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/models"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/rooms"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

// RoomHandler manages the room lifecycle endpoints.
type RoomHandler struct {
	rooms *rooms.Service
	hub   *ws.Hub
	audit *telemetry.AuditEmitter
	log   *logrus.Logger
}

// NewRoomHandler constructs a RoomHandler. hub may be nil when this process
// does not host the realtime tier; deletion fanout then rides the notifier
// injected into the room service.
func NewRoomHandler(roomService *rooms.Service, hub *ws.Hub, audit *telemetry.AuditEmitter, log *logrus.Logger) *RoomHandler {
	return &RoomHandler{rooms: roomService, hub: hub, audit: audit, log: log}
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), identity)
	if err != nil {
		h.emitAudit(c, "ERROR", "room creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"room": gin.H{
			"roomId":  room.RoomID,
			"adminId": room.AdminID,
		},
	})
}

// JoinRoom handles POST /rooms/join.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		RoomID string `json:"roomId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room ID is required"})
		return
	}

	view, err := h.rooms.Join(c.Request.Context(), req.RoomID, identity)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		h.emitAudit(c, "ERROR", "room join failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	h.emitAudit(c, "INFO", "Room joined")
	c.JSON(http.StatusOK, gin.H{"success": true, "room": view})
}

// DeleteRoom handles DELETE /rooms/:room_id. Storage deletion decides the
// response; live-notification failure is logged, never surfaced.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("room_id")

	err := h.rooms.Delete(c.Request.Context(), roomID, identity)
	if err != nil {
		switch {
		case errors.Is(err, rooms.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, rooms.ErrForbidden):
			h.emitAudit(c, "ERROR", "non-admin attempted room deletion")
			c.JSON(http.StatusForbidden, gin.H{"error": "only admin can delete the room"})
		default:
			h.emitAudit(c, "ERROR", "room deletion failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete room"})
		}
		return
	}

	observability.IncRoomDeleted("api")
	h.emitAudit(c, "INFO", "Room deleted")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "room deleted successfully"})
}

// LeaveRoom handles POST /rooms/:room_id/leave — the poll transport's
// permanent leave.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("room_id")

	result, err := h.rooms.Leave(c.Request.Context(), roomID, identity.ID, true)
	if err != nil {
		h.emitAudit(c, "ERROR", "room leave failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave room"})
		return
	}

	if result.Deleted {
		observability.IncRoomDeleted("leave")
		if h.hub != nil {
			h.hub.Broadcast(roomID, models.RoomDeletedEvent(roomID, result.Notice))
		}
	} else if h.hub != nil {
		h.hub.Broadcast(roomID, models.ParticipantsUpdateEvent(result.Participants))
	}

	h.emitAudit(c, "INFO", "Room left")
	c.JSON(http.StatusOK, gin.H{"success": true, "roomDeleted": result.Deleted})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	identity, _ := identityFromContext(c)
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDRef(identity))
}
