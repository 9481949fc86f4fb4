package ws

import (
	"time"

	"github.com/google/uuid"
)

// newConnID assigns each connection an id for log and event correlation,
// drawn from the same id space as messages and media.
func newConnID() string {
	return uuid.NewString()
}

// ConnInfo binds a live connection to its user and room. Runtime-only; never
// persisted.
type ConnInfo struct {
	ConnID      string
	RoomID      string
	UserID      string
	UserName    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
