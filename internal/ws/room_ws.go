package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/models"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/rabbitmq"
	"roomchat-service/internal/rooms"
)

// RoomWebSocketHandler serves the push transport: it joins connections to a
// room, replays the backlog once, and relays client events through the hub.
type RoomWebSocketHandler struct {
	hub      *Hub
	rooms    *rooms.Service
	messages MessageLog
	verifier *auth.Verifier
	validate *validator.Validate
	events   rabbitmq.Publisher
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

// MessageLog is the slice of the message repository the push transport needs.
type MessageLog interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID string, after *time.Time) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
}

// NewRoomWebSocketHandler constructs the handler. handshakeTimeout bounds the
// upgrade; clients that cannot establish the channel within it fall back to
// polling.
func NewRoomWebSocketHandler(
	hub *Hub,
	roomService *rooms.Service,
	messages MessageLog,
	verifier *auth.Verifier,
	events rabbitmq.Publisher,
	log *logrus.Logger,
	handshakeTimeout time.Duration,
) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{
		hub:      hub,
		rooms:    roomService,
		messages: messages,
		verifier: verifier,
		validate: validator.New(),
		events:   events,
		log:      log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection, performs the room join, and runs the read
// loop until the client leaves or disconnects.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")

	ctx, span := otel.Tracer("roomchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	identity, err := h.authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// The join failure must be visible on the channel itself so the client
	// can stop instead of retrying.
	view, err := h.rooms.Join(ctx, roomID, identity)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			_ = conn.WriteJSON(models.ErrorEvent("Room not found"))
		} else {
			h.log.WithError(err).Error("websocket join failed")
			_ = conn.WriteJSON(models.ErrorEvent("Failed to join room"))
		}
		conn.Close()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		RoomID:      roomID,
		UserID:      identity.ID,
		UserName:    identity.Name,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishWSEvent(ctx, "ws_connect", info, "")

	// Backlog is sent exactly once per join, after the connection is already
	// in the broadcast group; a message seen in both backlog and broadcast is
	// deduplicated by the client on id.
	backlog, err := h.messages.ListRoomMessages(ctx, roomID, nil)
	if err != nil {
		h.log.WithError(err).Error("failed to load room backlog")
		// The connection is already registered, so the write must go through
		// the hub; broadcasts from other read loops hold the same lock.
		_ = h.hub.SendTo(conn, models.ErrorEvent("Failed to load messages"))
		h.teardown(ctx, conn, "backlog load failed")
		return
	}
	if err := h.hub.SendTo(conn, models.RoomMessagesEvent(backlog)); err != nil {
		h.teardown(ctx, conn, err.Error())
		return
	}

	h.hub.Broadcast(roomID, models.ParticipantsUpdateEvent(view.Participants))
	h.hub.Broadcast(roomID, models.UserJoinedEvent(identity.Name))
	h.log.WithFields(logrus.Fields{"room_id": roomID, "user": identity.Name}).Info("user joined room")

	h.readLoop(ctx, conn, roomID, identity)
}

func (h *RoomWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, identity auth.Identity) {
	for {
		var event models.ClientEvent
		if err := conn.ReadJSON(&event); err != nil {
			// Transient disconnect: persisted membership stays untouched so a
			// reload can rejoin without shrinking (or deleting) the room.
			reason := err.Error()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = ""
			}
			h.teardown(ctx, conn, reason)
			return
		}

		if err := h.validate.Struct(event); err != nil {
			_ = h.hub.SendTo(conn, models.ErrorEvent("invalid event payload"))
			continue
		}

		switch event.Type {
		case models.ClientSendMessage:
			h.handleSendMessage(ctx, conn, roomID, identity, event)
		case models.ClientSendMedia:
			h.handleSendMedia(ctx, conn, roomID, event)
		case models.ClientTyping:
			observability.IncWSEvent("typing")
			h.hub.BroadcastExcept(roomID, conn, models.UserTypingEvent(identity.Name, event.IsTyping))
		case models.ClientLeave:
			h.handleLeave(ctx, conn, roomID, identity)
			return
		}
	}
}

func (h *RoomWebSocketHandler) handleSendMessage(ctx context.Context, conn *websocket.Conn, roomID string, identity auth.Identity, event models.ClientEvent) {
	// Room state may have changed while this connection was idle; re-check
	// before accepting the write.
	room, err := h.rooms.Get(ctx, roomID)
	if err != nil || room.IsDeleted {
		_ = h.hub.SendTo(conn, models.ErrorEvent("Room not found"))
		return
	}

	msg, err := h.messages.CreateMessage(ctx, models.Message{
		RoomID:     roomID,
		SenderID:   identity.ID,
		SenderName: identity.Name,
		Body:       event.Body,
		Type:       models.MessageTypeText,
	})
	if err != nil {
		// A room deleted between the check and the insert is rejected by the
		// storage layer; the sender hears the same "not found" as a stale check.
		if errors.Is(err, rooms.ErrRoomNotFound) {
			_ = h.hub.SendTo(conn, models.ErrorEvent("Room not found"))
			return
		}
		h.log.WithError(err).Error("failed to store message")
		_ = h.hub.SendTo(conn, models.ErrorEvent("Failed to send message"))
		return
	}

	observability.IncWSEvent("message")
	h.hub.Broadcast(roomID, models.NewMessageEvent(msg))
}

func (h *RoomWebSocketHandler) handleSendMedia(ctx context.Context, conn *websocket.Conn, roomID string, event models.ClientEvent) {
	// The upload path already persisted the message; this only announces it.
	msg, err := h.messages.GetMessage(ctx, event.MessageID)
	if err != nil {
		_ = h.hub.SendTo(conn, models.ErrorEvent("Message not found"))
		return
	}
	if msg.RoomID != roomID {
		_ = h.hub.SendTo(conn, models.ErrorEvent("Message does not belong to room"))
		return
	}

	observability.IncWSEvent("media")
	h.hub.Broadcast(roomID, models.NewMediaEvent(msg, models.MediaRef{
		MediaID:  event.MediaID,
		FileName: event.FileName,
		MimeType: event.MimeType,
		FileSize: event.FileSize,
	}))
}

func (h *RoomWebSocketHandler) handleLeave(ctx context.Context, conn *websocket.Conn, roomID string, identity auth.Identity) {
	result, err := h.rooms.Leave(ctx, roomID, identity.ID, true)
	if err != nil {
		h.log.WithError(err).Error("permanent leave failed")
		h.teardown(ctx, conn, "leave failed")
		return
	}

	if result.Deleted {
		observability.IncRoomDeleted("leave")
		// Remaining members hear about the deletion before the group is gone.
		h.hub.Broadcast(roomID, models.RoomDeletedEvent(roomID, result.Notice))
	} else {
		h.hub.Broadcast(roomID, models.ParticipantsUpdateEvent(result.Participants))
	}

	h.teardown(ctx, conn, "")
}

func (h *RoomWebSocketHandler) teardown(ctx context.Context, conn *websocket.Conn, reason string) {
	info, ok := h.hub.RemoveClient(conn)
	conn.Close()
	if !ok {
		return
	}
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	h.publishWSEvent(ctx, "ws_disconnect", info, reason)
	if reason != "" {
		observability.IncWSEvent("ws_error")
	}
}

func (h *RoomWebSocketHandler) authenticate(header string) (auth.Identity, error) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return h.verifier.Verify(header[len(prefix):])
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

func (h *RoomWebSocketHandler) publishWSEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	if h.events == nil {
		return
	}
	_ = h.events.Publish(ctx, "ws_events.rooms", map[string]any{
		"event_type": "ws_events",
		"event_name": name,
		"payload": map[string]any{
			"ws": map[string]any{
				"room_id":     info.RoomID,
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	})
}
