package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"roomchat-service/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, room models.Room, admin models.Participant) error {
	args := m.Called(ctx, room, admin)
	return args.Error(0)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	args := m.Called(ctx, roomID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *RoomRepositoryMock) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) AddParticipant(ctx context.Context, p models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) CountParticipants(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *RoomRepositoryMock) DeleteRoomCascade(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID string, after *time.Time) ([]models.Message, error) {
	args := m.Called(ctx, roomID, after)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type MediaRepositoryMock struct {
	mock.Mock
}

func (m *MediaRepositoryMock) CreateMedia(ctx context.Context, media models.Media) (models.Media, error) {
	args := m.Called(ctx, media)
	var out models.Media
	if val := args.Get(0); val != nil {
		out = val.(models.Media)
	}
	return out, args.Error(1)
}

func (m *MediaRepositoryMock) GetMedia(ctx context.Context, mediaID string) (models.Media, error) {
	args := m.Called(ctx, mediaID)
	var media models.Media
	if val := args.Get(0); val != nil {
		media = val.(models.Media)
	}
	return media, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyRoomDeleted(ctx context.Context, roomID, message string) (int, error) {
	args := m.Called(ctx, roomID, message)
	return args.Int(0), args.Error(1)
}

// PublisherMock stands in for the AMQP event publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
