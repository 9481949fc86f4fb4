package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/models"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/rooms"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

// MessageHandler serves the poll transport: cursor-based reads and plain HTTP
// sends for clients without a live channel.
type MessageHandler struct {
	rooms        *rooms.Service
	messages     repositories.MessageRepository
	hub          *ws.Hub
	audit        *telemetry.AuditEmitter
	log          *logrus.Logger
	pollInterval time.Duration
}

// NewMessageHandler constructs a MessageHandler. hub may be nil; sends then
// reach readers only through subsequent polls. pollInterval is the cadence
// advertised to poll clients on every list response.
func NewMessageHandler(roomService *rooms.Service, messages repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter, log *logrus.Logger, pollInterval time.Duration) *MessageHandler {
	return &MessageHandler{rooms: roomService, messages: messages, hub: hub, audit: audit, log: log, pollInterval: pollInterval}
}

// ListMessages handles GET /rooms/:room_id/messages. The optional after
// parameter is an RFC3339Nano cursor; only strictly newer messages return.
// roomDeleted in the response tells pollers to stop and leave.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("room_id")

	room, err := h.rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "roomDeleted": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	member, err := h.rooms.IsParticipant(c.Request.Context(), roomID, identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this room"})
		return
	}

	var after *time.Time
	if raw := c.Query("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		after = &parsed
	}

	messages, err := h.messages.ListRoomMessages(c.Request.Context(), roomID, after)
	if err != nil {
		h.log.WithError(err).Error("failed to list room messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	if h.pollInterval > 0 {
		c.Header("X-Poll-Interval", h.pollInterval.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"messages":    messages,
		"roomDeleted": room.IsDeleted,
	})
}

// PostMessage handles POST /rooms/:room_id/messages. A room marked deleted
// answers 410 so pollers distinguish "gone" from "never existed".
func (h *MessageHandler) PostMessage(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("room_id")

	var req struct {
		Body string `json:"body" binding:"required,max=4000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body is required"})
		return
	}

	room, err := h.rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	if room.IsDeleted {
		c.JSON(http.StatusGone, gin.H{"error": "room has been deleted", "roomDeleted": true})
		return
	}

	member, err := h.rooms.IsParticipant(c.Request.Context(), roomID, identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this room"})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), models.Message{
		RoomID:     roomID,
		SenderID:   identity.ID,
		SenderName: identity.Name,
		Body:       req.Body,
		Type:       models.MessageTypeText,
	})
	if err != nil {
		// The room FK rejects inserts racing a delete; answer as if the
		// up-front room check had seen the deletion.
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "roomDeleted": true})
			return
		}
		h.log.WithError(err).Error("failed to store message")
		h.emitAudit(c, "ERROR", "message store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	observability.IncWSEvent("message")
	if h.hub != nil {
		h.hub.Broadcast(roomID, models.NewMessageEvent(msg))
	}

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	identity, _ := identityFromContext(c)
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDRef(identity))
}
