package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"roomchat-service/internal/models"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomCodeTaken = errors.New("room code already taken")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.Room, admin models.Participant) error
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	AddParticipant(ctx context.Context, p models.Participant) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error
	CountParticipants(ctx context.Context, roomID string) (int, error)
	DeleteRoomCascade(ctx context.Context, roomID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts the room and its admin as sole participant atomically.
// A room-code collision surfaces as ErrRoomCodeTaken so the caller can retry
// with a fresh code.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room, admin models.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (room_id, admin_id, admin_name, created_at) VALUES ($1, $2, $3, $4)`,
		room.RoomID, room.AdminID, room.AdminName, room.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = ErrRoomCodeTaken
		}
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO room_participants (room_id, user_id, user_name, avatar, joined_at) VALUES ($1, $2, $3, $4, $5)`,
		room.RoomID, admin.UserID, admin.UserName, admin.Avatar, admin.JoinedAt); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// GetRoom fetches a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT room_id, admin_id, admin_name, is_deleted, deleted_at, created_at FROM rooms WHERE room_id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListParticipants returns the room's members annotated with the admin flag,
// in join order.
func (r *RoomRepo) ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants,
		`SELECT p.room_id, p.user_id, p.user_name, p.avatar, p.joined_at,
                (p.user_id = r.admin_id) AS is_admin
         FROM room_participants p
         INNER JOIN rooms r ON r.room_id = p.room_id
         WHERE p.room_id=$1
         ORDER BY p.joined_at ASC`, roomID)
	return participants, err
}

// IsParticipant checks persisted membership.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// AddParticipant appends a member; re-joining is a no-op.
func (r *RoomRepo) AddParticipant(ctx context.Context, p models.Participant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_participants (room_id, user_id, user_name, avatar, joined_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (room_id, user_id) DO NOTHING`,
		p.RoomID, p.UserID, p.UserName, p.Avatar, p.JoinedAt)
	return err
}

// RemoveParticipant deletes a member record.
func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM room_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	return err
}

// CountParticipants returns the persisted member count.
func (r *RoomRepo) CountParticipants(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM room_participants WHERE room_id=$1`, roomID)
	return count, err
}

// DeleteRoomCascade removes the room, its membership, messages and media in
// one transaction. Partial deletes never commit.
func (r *RoomRepo) DeleteRoomCascade(ctx context.Context, roomID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM media WHERE room_id=$1`,
		`DELETE FROM messages WHERE room_id=$1`,
		`DELETE FROM room_participants WHERE room_id=$1`,
		`DELETE FROM rooms WHERE room_id=$1`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, roomID); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}
