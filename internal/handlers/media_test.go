package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/mediatransform"
	"roomchat-service/internal/mocks"
	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/rooms"
)

func setupMediaRouter(handler *MediaHandler, identity auth.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("identity", identity)
		c.Next()
	})
	r.POST("/rooms/:room_id/media", handler.Upload)
	r.GET("/media/:id", handler.Download)
	r.GET("/media/:id/preview", handler.Preview)
	return r
}

func multipartFile(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadMediaSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, msgRepo, mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2", Name: "bob"})

	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	roomRepo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234"}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()
	mediaRepo.On("CreateMedia", mock.Anything, mock.MatchedBy(func(m models.Media) bool {
		return m.RoomID == "ABCD1234" && m.MimeType == "image/jpeg" && bytes.Equal(m.Data, raw)
	})).Return(models.Media{ID: "media-1", RoomID: "ABCD1234", FileName: "photo.jpg", MimeType: "image/jpeg", FileSize: 4}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Type == models.MessageTypeMedia && msg.MediaID != nil && *msg.MediaID == "media-1"
	})).Return(models.Message{ID: "msg-1", RoomID: "ABCD1234", Type: models.MessageTypeMedia}, nil).Once()

	body, contentType := multipartFile(t, "file", "photo.jpg", "image/jpeg", raw)
	req := httptest.NewRequest(http.MethodPost, "/rooms/ABCD1234/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Success   bool   `json:"success"`
		MediaID   string `json:"mediaId"`
		MessageID string `json:"messageId"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "media-1", resp.MediaID)
	assert.Equal(t, "msg-1", resp.MessageID)
	roomRepo.AssertExpectations(t)
	mediaRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestUploadMediaRejectsUnsupportedType(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, new(mocks.MediaRepositoryMock), new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	roomRepo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234"}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()

	body, contentType := multipartFile(t, "file", "doc.pdf", "application/pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/rooms/ABCD1234/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadMediaToDeletedRoomIsGone(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, new(mocks.MediaRepositoryMock), new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	roomRepo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234", IsDeleted: true}, nil).Once()

	body, contentType := multipartFile(t, "file", "photo.jpg", "image/jpeg", []byte{1})
	req := httptest.NewRequest(http.MethodPost, "/rooms/ABCD1234/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusGone, rec.Code)
}

func TestUploadMediaRejectedWhenRoomDeletedMidUpload(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	roomRepo.On("GetRoom", mock.Anything, "ABCD1234").Return(models.Room{RoomID: "ABCD1234"}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()
	mediaRepo.On("CreateMedia", mock.Anything, mock.Anything).Return(models.Media{}, repositories.ErrRoomNotFound).Once()

	body, contentType := multipartFile(t, "file", "photo.jpg", "image/jpeg", []byte{1})
	req := httptest.NewRequest(http.MethodPost, "/rooms/ABCD1234/media", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	mediaRepo.AssertExpectations(t)
}

func TestDownloadMediaSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	mediaRepo.On("GetMedia", mock.Anything, "media-1").Return(models.Media{
		ID: "media-1", RoomID: "ABCD1234", OriginalName: "photo.jpg",
		MimeType: "image/jpeg", Data: []byte{1, 2, 3},
	}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/media/media-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "photo.jpg")
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}

func TestDownloadMediaNotFound(t *testing.T) {
	mediaRepo := new(mocks.MediaRepositoryMock)
	handler := NewMediaHandler(rooms.NewService(new(mocks.RoomRepositoryMock), nil, testLogger()), mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	mediaRepo.On("GetMedia", mock.Anything, "missing").Return(models.Media{}, repositories.ErrMediaNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/media/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadMediaNonParticipant(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "stranger"})

	mediaRepo.On("GetMedia", mock.Anything, "media-1").Return(models.Media{ID: "media-1", RoomID: "ABCD1234"}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "stranger").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/media/media-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPreviewFallsBackToDisplayBytes(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	mediaRepo.On("GetMedia", mock.Anything, "media-1").Return(models.Media{
		ID: "media-1", RoomID: "ABCD1234", MimeType: "image/png", Data: []byte{9, 9},
	}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/media/media-1/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
	assert.Equal(t, []byte{9, 9}, rec.Body.Bytes())
}

func TestPreviewServesDerivedBytes(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	mediaRepo := new(mocks.MediaRepositoryMock)
	svc := rooms.NewService(roomRepo, nil, testLogger())
	handler := NewMediaHandler(svc, mediaRepo, new(mocks.MessageRepositoryMock), mediatransform.NewPassthrough(), nil, nil, testLogger())
	router := setupMediaRouter(handler, auth.Identity{ID: "u2"})

	mediaRepo.On("GetMedia", mock.Anything, "media-1").Return(models.Media{
		ID: "media-1", RoomID: "ABCD1234", MimeType: "image/png",
		Data: []byte{9, 9}, Preview: []byte{5},
	}, nil).Once()
	roomRepo.On("IsParticipant", mock.Anything, "ABCD1234", "u2").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/media/media-1/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{5}, rec.Body.Bytes())
}
