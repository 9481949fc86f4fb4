package models

import "time"

// Room is a transient chat channel identified by a short shareable code.
type Room struct {
	RoomID    string     `db:"room_id" json:"roomId"`
	AdminID   string     `db:"admin_id" json:"adminId"`
	AdminName string     `db:"admin_name" json:"adminName"`
	IsDeleted bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Participant is a persisted room member. Identity fields are denormalized
// from the session token at join time; there is no local user store.
type Participant struct {
	RoomID   string    `db:"room_id" json:"-"`
	UserID   string    `db:"user_id" json:"id"`
	UserName string    `db:"user_name" json:"name"`
	Avatar   string    `db:"avatar" json:"avatar"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
	IsAdmin  bool      `db:"is_admin" json:"isAdmin"`
}

// RoomView is the admin-annotated view returned to a joining client.
type RoomView struct {
	RoomID       string        `json:"roomId"`
	AdminID      string        `json:"adminId"`
	AdminName    string        `json:"adminName"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
}
