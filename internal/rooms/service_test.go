package rooms

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/mocks"
	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Return(repositories.ErrRoomCodeTaken).Twice()
	repo.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	room, err := svc.Create(context.Background(), auth.Identity{ID: "u1", Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "u1", room.AdminID)
	assert.Len(t, room.RoomID, 8)
	repo.AssertExpectations(t)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Return(repositories.ErrRoomCodeTaken).Times(createAttempts)

	_, err := svc.Create(context.Background(), auth.Identity{ID: "u1"})
	require.Error(t, err)
	repo.AssertExpectations(t)
}

func TestJoinIsIdempotent(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	room := models.Room{RoomID: "ABCD1234", AdminID: "admin"}
	participants := []models.Participant{
		{RoomID: "ABCD1234", UserID: "admin", IsAdmin: true},
		{RoomID: "ABCD1234", UserID: "u2"},
	}
	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(room, nil).Twice()
	repo.On("AddParticipant", mock.Anything, mock.Anything).Return(nil).Twice()
	repo.On("ListParticipants", mock.Anything, "ABCD1234").Return(participants, nil).Twice()

	view1, err := svc.Join(context.Background(), "ABCD1234", auth.Identity{ID: "u2", Name: "bob"})
	require.NoError(t, err)
	view2, err := svc.Join(context.Background(), "ABCD1234", auth.Identity{ID: "u2", Name: "bob"})
	require.NoError(t, err)

	assert.Equal(t, view1.Participants, view2.Participants)
	repo.AssertExpectations(t)
}

func TestJoinRoomNotFound(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "MISSING1").Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	_, err := svc.Join(context.Background(), "MISSING1", auth.Identity{ID: "u2"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	repo.AssertExpectations(t)
}

func TestJoinDeletedRoomLooksAbsent(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "GONE0001").Return(models.Room{RoomID: "GONE0001", IsDeleted: true}, nil).Once()

	_, err := svc.Join(context.Background(), "GONE0001", auth.Identity{ID: "u2"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	repo.AssertExpectations(t)
}

func TestTransientLeaveTouchesNothing(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	result, err := svc.Leave(context.Background(), "ABCD1234", "u2", false)
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	repo.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestPermanentLeaveKeepsRoomWithMembersLeft(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	remaining := []models.Participant{{RoomID: "ABCD1234", UserID: "admin", IsAdmin: true}}
	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()
	repo.On("RemoveParticipant", mock.Anything, "ABCD1234", "u2").Return(nil).Once()
	repo.On("CountParticipants", mock.Anything, "ABCD1234").Return(1, nil).Once()
	repo.On("ListParticipants", mock.Anything, "ABCD1234").Return(remaining, nil).Once()

	result, err := svc.Leave(context.Background(), "ABCD1234", "u2", true)
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, remaining, result.Participants)
	repo.AssertExpectations(t)
}

func TestAdminLeaveDeletesRoom(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()
	repo.On("RemoveParticipant", mock.Anything, "ABCD1234", "admin").Return(nil).Once()
	repo.On("CountParticipants", mock.Anything, "ABCD1234").Return(3, nil).Once()
	repo.On("DeleteRoomCascade", mock.Anything, "ABCD1234").Return(nil).Once()

	result, err := svc.Leave(context.Background(), "ABCD1234", "admin", true)
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, "admin left", result.Reason)
	assert.Equal(t, "Admin has left the room. Room will be deleted.", result.Notice)
	repo.AssertExpectations(t)
}

func TestLastMemberLeaveDeletesRoom(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()
	repo.On("RemoveParticipant", mock.Anything, "ABCD1234", "u2").Return(nil).Once()
	repo.On("CountParticipants", mock.Anything, "ABCD1234").Return(0, nil).Once()
	repo.On("DeleteRoomCascade", mock.Anything, "ABCD1234").Return(nil).Once()

	result, err := svc.Leave(context.Background(), "ABCD1234", "u2", true)
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, "no participants", result.Reason)
	assert.Equal(t, "This room has been deleted.", result.Notice)
	repo.AssertExpectations(t)
}

func TestLeaveAfterConcurrentDeleteIsNoop(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	result, err := svc.Leave(context.Background(), "ABCD1234", "u2", true)
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	repo.AssertExpectations(t)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	svc := NewService(repo, nil, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()

	err := svc.Delete(context.Background(), "ABCD1234", auth.Identity{ID: "u2"})
	assert.ErrorIs(t, err, ErrForbidden)
	repo.AssertNotCalled(t, "DeleteRoomCascade", mock.Anything, mock.Anything)
}

func TestDeleteNotifiesLiveMembers(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := NewService(repo, notifier, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()
	repo.On("DeleteRoomCascade", mock.Anything, "ABCD1234").Return(nil).Once()
	notifier.On("NotifyRoomDeleted", mock.Anything, "ABCD1234", mock.Anything).Return(2, nil).Once()

	err := svc.Delete(context.Background(), "ABCD1234", auth.Identity{ID: "admin"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeleteSucceedsWhenNotificationFails(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := NewService(repo, notifier, testLogger())

	repo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", AdminID: "admin"}, nil).Once()
	repo.On("DeleteRoomCascade", mock.Anything, "ABCD1234").Return(nil).Once()
	notifier.On("NotifyRoomDeleted", mock.Anything, "ABCD1234", mock.Anything).Return(0, assert.AnError).Once()

	err := svc.Delete(context.Background(), "ABCD1234", auth.Identity{ID: "admin"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestNewRoomCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := newRoomCode()
		assert.Len(t, code, 8)
		assert.Equal(t, strings.ToUpper(code), code)
	}
}
