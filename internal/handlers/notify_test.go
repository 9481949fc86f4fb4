package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/ws"
)

func setupNotifyRouter(handler *NotifyHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/room-deleted", handler.RoomDeleted)
	return r
}

func TestRoomDeletedFanoutEmptyRoom(t *testing.T) {
	hub := ws.NewHub(testLogger())
	handler := NewNotifyHandler(hub, testLogger())
	router := setupNotifyRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/internal/room-deleted",
		bytes.NewBufferString(`{"roomId":"ABCD1234","message":"gone"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success         bool `json:"success"`
		SocketsNotified int  `json:"socketsNotified"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.SocketsNotified)
}

func TestRoomDeletedRequiresRoomID(t *testing.T) {
	handler := NewNotifyHandler(ws.NewHub(testLogger()), testLogger())
	router := setupNotifyRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/internal/room-deleted", bytes.NewBufferString(`{"message":"gone"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
