package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"roomchat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only message log for rooms.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID string, after *time.Time) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message, assigning its id and server timestamp.
// The room foreign key rejects writes that race a room deletion; that
// violation surfaces as ErrRoomNotFound.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = uuid.NewString()
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, sender_name, body, type, media_id, ts)
         VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
         RETURNING ts`,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.Type, msg.MediaID).
		Scan(&msg.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return models.Message{}, ErrRoomNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}

// ListRoomMessages returns the room's messages in insertion order; a non-nil
// cursor restricts the range to timestamps strictly after it.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID string, after *time.Time) ([]models.Message, error) {
	var msgs []models.Message
	var err error
	if after != nil {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT id, room_id, sender_id, sender_name, body, type, media_id, ts
             FROM messages WHERE room_id=$1 AND ts > $2 ORDER BY ts ASC`, roomID, *after)
	} else {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT id, room_id, sender_id, sender_name, body, type, media_id, ts
             FROM messages WHERE room_id=$1 ORDER BY ts ASC`, roomID)
	}
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, room_id, sender_id, sender_name, body, type, media_id, ts FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
