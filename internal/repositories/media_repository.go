package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"roomchat-service/internal/models"
)

var ErrMediaNotFound = errors.New("media not found")

// MediaRepository stores uploaded blobs and their previews.
type MediaRepository interface {
	CreateMedia(ctx context.Context, media models.Media) (models.Media, error)
	GetMedia(ctx context.Context, mediaID string) (models.Media, error)
}

// MediaRepo is a sqlx-backed repository.
type MediaRepo struct {
	db *sqlx.DB
}

// NewMediaRepo constructs MediaRepo.
func NewMediaRepo(db *sqlx.DB) *MediaRepo {
	return &MediaRepo{db: db}
}

// CreateMedia persists a blob, assigning its id. A room-FK violation means
// the room was deleted underneath the upload and maps to ErrRoomNotFound.
func (r *MediaRepo) CreateMedia(ctx context.Context, media models.Media) (models.Media, error) {
	media.ID = uuid.NewString()
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO media (id, room_id, sender_id, file_name, original_name, mime_type, file_size, data, preview, width, height, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
         RETURNING created_at`,
		media.ID, media.RoomID, media.SenderID, media.FileName, media.OriginalName,
		media.MimeType, media.FileSize, media.Data, media.Preview, media.Width, media.Height).
		Scan(&media.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return models.Media{}, ErrRoomNotFound
		}
		return models.Media{}, err
	}
	return media, nil
}

// GetMedia retrieves a blob by id.
func (r *MediaRepo) GetMedia(ctx context.Context, mediaID string) (models.Media, error) {
	var media models.Media
	err := r.db.GetContext(ctx, &media,
		`SELECT id, room_id, sender_id, file_name, original_name, mime_type, file_size, data, preview, width, height, created_at
         FROM media WHERE id=$1`, mediaID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Media{}, ErrMediaNotFound
	}
	return media, err
}
