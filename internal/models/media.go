package models

import "time"

// Media is a stored binary blob plus its derived low-resolution preview.
type Media struct {
	ID           string    `db:"id" json:"id"`
	RoomID       string    `db:"room_id" json:"roomId"`
	SenderID     string    `db:"sender_id" json:"senderId"`
	FileName     string    `db:"file_name" json:"fileName"`
	OriginalName string    `db:"original_name" json:"originalName"`
	MimeType     string    `db:"mime_type" json:"mimeType"`
	FileSize     int64     `db:"file_size" json:"fileSize"`
	Data         []byte    `db:"data" json:"-"`
	Preview      []byte    `db:"preview" json:"-"`
	Width        *int      `db:"width" json:"width,omitempty"`
	Height       *int      `db:"height" json:"height,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
