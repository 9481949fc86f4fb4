package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/mediatransform"
	"roomchat-service/internal/models"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/rooms"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

const maxUploadBytes = 50 << 20

// MediaHandler stores uploads, runs them through the transform pipeline, and
// serves the resulting blobs back.
type MediaHandler struct {
	rooms     *rooms.Service
	media     repositories.MediaRepository
	messages  repositories.MessageRepository
	transform mediatransform.Transformer
	hub       *ws.Hub
	audit     *telemetry.AuditEmitter
	log       *logrus.Logger
}

// NewMediaHandler constructs a MediaHandler.
func NewMediaHandler(
	roomService *rooms.Service,
	media repositories.MediaRepository,
	messages repositories.MessageRepository,
	transform mediatransform.Transformer,
	hub *ws.Hub,
	audit *telemetry.AuditEmitter,
	log *logrus.Logger,
) *MediaHandler {
	return &MediaHandler{
		rooms:     roomService,
		media:     media,
		messages:  messages,
		transform: transform,
		hub:       hub,
		audit:     audit,
		log:       log,
	}
}

// Upload handles POST /rooms/:room_id/media. The blob and its message are
// persisted together; the realtime announcement follows separately, either via
// the hub here or a send-media frame from the uploader's connection.
func (h *MediaHandler) Upload(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("room_id")

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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "video/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image and video uploads are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}

	result, err := h.transform.Transform(c.Request.Context(), data, mimeType)
	if err != nil {
		h.log.WithError(err).Error("media transform failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process media"})
		return
	}

	media, err := h.media.CreateMedia(c.Request.Context(), models.Media{
		RoomID:       roomID,
		SenderID:     identity.ID,
		FileName:     fileHeader.Filename,
		OriginalName: fileHeader.Filename,
		MimeType:     mimeType,
		FileSize:     int64(len(result.Display)),
		Data:         result.Display,
		Preview:      result.Preview,
		Width:        result.Width,
		Height:       result.Height,
	})
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "roomDeleted": true})
			return
		}
		h.log.WithError(err).Error("failed to store media")
		h.emitAudit(c, "ERROR", "media store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store media"})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), models.Message{
		RoomID:     roomID,
		SenderID:   identity.ID,
		SenderName: identity.Name,
		Body:       fileHeader.Filename,
		Type:       models.MessageTypeMedia,
		MediaID:    &media.ID,
	})
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "roomDeleted": true})
			return
		}
		h.log.WithError(err).Error("failed to store media message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store media"})
		return
	}

	observability.IncWSEvent("media_upload")
	if h.hub != nil {
		h.hub.Broadcast(roomID, models.NewMediaEvent(msg, models.MediaRef{
			MediaID:  media.ID,
			FileName: media.FileName,
			MimeType: media.MimeType,
			FileSize: media.FileSize,
		}))
	}

	h.emitAudit(c, "INFO", "Media uploaded")
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"mediaId":   media.ID,
		"messageId": msg.ID,
		"fileName":  media.FileName,
		"mimeType":  media.MimeType,
		"fileSize":  media.FileSize,
	})
}

// Download handles GET /media/:id.
func (h *MediaHandler) Download(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	media, err := h.media.GetMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media"})
		return
	}

	member, err := h.rooms.IsParticipant(c.Request.Context(), media.RoomID, identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this room"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", media.OriginalName))
	c.Data(http.StatusOK, media.MimeType, media.Data)
}

// Preview handles GET /media/:id/preview. Falls back to the full blob when no
// preview was derived.
func (h *MediaHandler) Preview(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	media, err := h.media.GetMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media"})
		return
	}

	member, err := h.rooms.IsParticipant(c.Request.Context(), media.RoomID, identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this room"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	if len(media.Preview) > 0 {
		c.Data(http.StatusOK, "image/jpeg", media.Preview)
		return
	}
	c.Data(http.StatusOK, media.MimeType, media.Data)
}

func (h *MediaHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	identity, _ := identityFromContext(c)
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDRef(identity))
}
