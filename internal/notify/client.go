package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the cross-process notifier: it tells a standalone realtime tier
// to fan a room-deleted event out to its live connections. Callers treat any
// failure as non-fatal; affected clients discover the deletion on their next
// poll or API call.
type Client struct {
	endpoint string
	http     *http.Client
	log      *logrus.Logger
}

// NewClient constructs a notifier for the realtime tier's notification
// endpoint. timeout bounds the whole call.
func NewClient(endpoint string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

type notifyRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type notifyResponse struct {
	Success         bool `json:"success"`
	SocketsNotified int  `json:"socketsNotified"`
}

// NotifyRoomDeleted posts the deletion to the realtime tier and returns how
// many live connections it reached.
func (c *Client) NotifyRoomDeleted(ctx context.Context, roomID, message string) (int, error) {
	body, err := json.Marshal(notifyRequest{RoomID: roomID, Message: message})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("notify endpoint returned %d", resp.StatusCode)
	}

	var result notifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, fmt.Errorf("notify endpoint reported failure")
	}
	return result.SocketsNotified, nil
}
