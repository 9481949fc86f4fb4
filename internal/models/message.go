package models

import "time"

// MessageType discriminates text messages from media references.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMedia MessageType = "media"
)

// Message is an immutable chat message. Timestamp is server-assigned at
// creation; persisted order is insertion order.
type Message struct {
	ID         string      `db:"id" json:"id"`
	RoomID     string      `db:"room_id" json:"roomId"`
	SenderID   string      `db:"sender_id" json:"senderId"`
	SenderName string      `db:"sender_name" json:"senderName"`
	Body       string      `db:"body" json:"body"`
	Type       MessageType `db:"type" json:"type"`
	MediaID    *string     `db:"media_id" json:"mediaId,omitempty"`
	Timestamp  time.Time   `db:"ts" json:"timestamp"`
}
