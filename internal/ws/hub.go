package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"roomchat-service/internal/models"
)

// Hub owns the live connections: the per-room broadcast groups and the
// connection-to-{user,room} mapping. All membership mutation and group
// iteration happens under one lock, so events submitted by a single sender
// reach every recipient in submission order.
type Hub struct {
	log   *logrus.Logger
	mu    sync.Mutex
	rooms map[string]map[*websocket.Conn]bool
	conns map[*websocket.Conn]ConnInfo
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[*websocket.Conn]bool),
		conns: make(map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a connection with its room's broadcast group.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[info.RoomID]; !ok {
		h.rooms[info.RoomID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[info.RoomID][conn] = true
	h.conns[conn] = info
}

// RemoveClient drops a connection from its group and the connection map.
// Safe to call more than once.
func (h *Hub) RemoveClient(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *websocket.Conn) (ConnInfo, bool) {
	info, ok := h.conns[conn]
	if !ok {
		return ConnInfo{}, false
	}
	delete(h.conns, conn)
	if group, ok := h.rooms[info.RoomID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.rooms, info.RoomID)
		}
	}
	return info, true
}

// Info returns the registration for a connection.
func (h *Hub) Info(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.conns[conn]
	return info, ok
}

// ClientCount reports the number of live connections in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// SendTo writes one event to a single connection, serialized with broadcasts.
func (h *Hub) SendTo(conn *websocket.Conn, event models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := conn.WriteJSON(event); err != nil {
		h.dropLocked(conn, err)
		return err
	}
	return nil
}

// Broadcast delivers an event to every connection in the room and returns
// the delivery count. Dead connections are pruned inline.
func (h *Hub) Broadcast(roomID string, event models.Event) int {
	return h.broadcast(roomID, nil, event)
}

// BroadcastExcept delivers an event to every connection in the room except
// one, typically the sender of a typing signal.
func (h *Hub) BroadcastExcept(roomID string, except *websocket.Conn, event models.Event) int {
	return h.broadcast(roomID, except, event)
}

func (h *Hub) broadcast(roomID string, except *websocket.Conn, event models.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for conn := range h.rooms[roomID] {
		if conn == except {
			continue
		}
		if err := conn.WriteJSON(event); err != nil {
			h.dropLocked(conn, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) dropLocked(conn *websocket.Conn, err error) {
	h.log.WithError(err).Warn("websocket write error")
	conn.Close()
	h.removeLocked(conn)
}

// NotifyRoomDeleted implements the room directory's deletion fanout for the
// co-located case: the event goes straight to the room's broadcast group.
func (h *Hub) NotifyRoomDeleted(_ context.Context, roomID, message string) (int, error) {
	return h.Broadcast(roomID, models.RoomDeletedEvent(roomID, message)), nil
}
