package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
)

var (
	ErrRoomNotFound = repositories.ErrRoomNotFound
	ErrForbidden    = errors.New("only the admin may delete the room")
)

const createAttempts = 5

// DeletedNotifier fans a room-deleted event out to live connections. The hub
// implements it in-process; the HTTP notifier implements it when the realtime
// tier runs separately. Failures are non-fatal to the triggering operation.
type DeletedNotifier interface {
	NotifyRoomDeleted(ctx context.Context, roomID, message string) (int, error)
}

// LeaveResult reports what a permanent leave did to the room. When the leave
// deleted the room, Notice carries the human-readable text to broadcast to
// remaining live connections.
type LeaveResult struct {
	Deleted      bool
	Reason       string
	Notice       string
	Participants []models.Participant
}

// Service is the room directory: it owns the canonical Room record and
// enforces the lifecycle rules.
type Service struct {
	repo     repositories.RoomRepository
	notifier DeletedNotifier
	log      *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs the room directory.
func NewService(repo repositories.RoomRepository, notifier DeletedNotifier, log *logrus.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockRoom returns the mutex serializing membership mutation for one room.
func (s *Service) lockRoom(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[roomID] = lock
	}
	return lock
}

func (s *Service) releaseRoomLock(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, roomID)
}

// newRoomCode derives an 8-character uppercase code from a fresh uuid.
func newRoomCode() string {
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// Create generates a collision-free room code and creates the room with the
// admin as sole participant.
func (s *Service) Create(ctx context.Context, admin auth.Identity) (models.Room, error) {
	now := time.Now().UTC()
	for i := 0; i < createAttempts; i++ {
		room := models.Room{
			RoomID:    newRoomCode(),
			AdminID:   admin.ID,
			AdminName: admin.Name,
			CreatedAt: now,
		}
		participant := models.Participant{
			RoomID:   room.RoomID,
			UserID:   admin.ID,
			UserName: admin.Name,
			Avatar:   admin.Avatar,
			JoinedAt: now,
		}
		err := s.repo.CreateRoom(ctx, room, participant)
		if err == nil {
			s.log.WithFields(logrus.Fields{"room_id": room.RoomID, "admin_id": admin.ID}).Info("room created")
			return room, nil
		}
		if errors.Is(err, repositories.ErrRoomCodeTaken) {
			continue
		}
		return models.Room{}, err
	}
	return models.Room{}, fmt.Errorf("could not allocate a unique room code after %d attempts", createAttempts)
}

// Join adds the user to the room if absent; re-joining is a no-op. A missing
// or deleted room yields ErrRoomNotFound.
func (s *Service) Join(ctx context.Context, roomID string, user auth.Identity) (models.RoomView, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return models.RoomView{}, err
	}
	if room.IsDeleted {
		return models.RoomView{}, ErrRoomNotFound
	}

	participant := models.Participant{
		RoomID:   roomID,
		UserID:   user.ID,
		UserName: user.Name,
		Avatar:   user.Avatar,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return models.RoomView{}, err
	}

	participants, err := s.repo.ListParticipants(ctx, roomID)
	if err != nil {
		return models.RoomView{}, err
	}

	return models.RoomView{
		RoomID:       room.RoomID,
		AdminID:      room.AdminID,
		AdminName:    room.AdminName,
		Participants: participants,
		CreatedAt:    room.CreatedAt,
	}, nil
}

// Get fetches the room record.
func (s *Service) Get(ctx context.Context, roomID string) (models.Room, error) {
	return s.repo.GetRoom(ctx, roomID)
}

// IsParticipant checks persisted membership.
func (s *Service) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	return s.repo.IsParticipant(ctx, roomID, userID)
}

// Participants returns the admin-annotated member list.
func (s *Service) Participants(ctx context.Context, roomID string) ([]models.Participant, error) {
	return s.repo.ListParticipants(ctx, roomID)
}

// Leave removes a participant. permanent=false is a transient disconnect and
// never mutates the room record. permanent=true removes the member and then
// evaluates the deletion predicate under the room's lock: the room is
// destroyed when it was already marked deleted, when the admin leaves, or
// when nobody remains.
func (s *Service) Leave(ctx context.Context, roomID, userID string, permanent bool) (LeaveResult, error) {
	if !permanent {
		return LeaveResult{}, nil
	}

	lock := s.lockRoom(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			// Lost the race against a concurrent delete.
			return LeaveResult{}, nil
		}
		return LeaveResult{}, err
	}

	if err := s.repo.RemoveParticipant(ctx, roomID, userID); err != nil {
		return LeaveResult{}, err
	}

	remaining, err := s.repo.CountParticipants(ctx, roomID)
	if err != nil {
		return LeaveResult{}, err
	}

	isAdmin := room.AdminID == userID
	if room.IsDeleted || isAdmin || remaining == 0 {
		if err := s.repo.DeleteRoomCascade(ctx, roomID); err != nil {
			return LeaveResult{}, err
		}
		s.releaseRoomLock(roomID)

		reason, notice := "no participants", "This room has been deleted."
		if room.IsDeleted {
			reason, notice = "marked as deleted and all participants left", "This room has been deleted by the admin"
		} else if isAdmin {
			reason, notice = "admin left", "Admin has left the room. Room will be deleted."
		}
		s.log.WithFields(logrus.Fields{"room_id": roomID, "reason": reason}).Info("room deleted")
		return LeaveResult{Deleted: true, Reason: reason, Notice: notice}, nil
	}

	participants, err := s.repo.ListParticipants(ctx, roomID)
	if err != nil {
		return LeaveResult{}, err
	}
	return LeaveResult{Participants: participants}, nil
}

// Delete removes a room and cascades its messages and media. Only the admin
// may delete. Live members are notified fire-and-forget; a failed
// notification never fails the delete.
func (s *Service) Delete(ctx context.Context, roomID string, requester auth.Identity) error {
	lock := s.lockRoom(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID != requester.ID {
		return ErrForbidden
	}

	if err := s.repo.DeleteRoomCascade(ctx, roomID); err != nil {
		return err
	}
	s.releaseRoomLock(roomID)
	s.log.WithFields(logrus.Fields{"room_id": roomID, "admin_id": requester.ID}).Info("room deleted by admin")

	if s.notifier != nil {
		notified, err := s.notifier.NotifyRoomDeleted(ctx, roomID, "This room has been deleted by the admin")
		if err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Warn("room-deleted notification failed")
		} else {
			s.log.WithFields(logrus.Fields{"room_id": roomID, "notified": notified}).Info("room-deleted notification sent")
		}
	}
	return nil
}
