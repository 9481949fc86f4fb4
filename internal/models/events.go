package models

// EventType enumerates the server-emitted push events. The set is closed;
// every event carries a fixed payload shape.
type EventType string

const (
	EventRoomMessages       EventType = "room-messages"
	EventNewMessage         EventType = "new-message"
	EventNewMedia           EventType = "new-media"
	EventParticipantsUpdate EventType = "participants-update"
	EventUserJoined         EventType = "user-joined"
	EventUserTyping         EventType = "user-typing"
	EventRoomDeleted        EventType = "room-deleted"
	EventError              EventType = "error"
)

// Event is the tagged variant broadcast over the push transport. Exactly the
// fields belonging to the Type are populated.
type Event struct {
	Type         EventType     `json:"type"`
	Messages     []Message     `json:"messages,omitempty"`
	Message      *Message      `json:"message,omitempty"`
	Media        *MediaRef     `json:"media,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	UserName     string        `json:"userName,omitempty"`
	IsTyping     *bool         `json:"isTyping,omitempty"`
	RoomID       string        `json:"roomId,omitempty"`
	Text         string        `json:"text,omitempty"`
}

// MediaRef rides on new-media events alongside the persisted message.
type MediaRef struct {
	MediaID  string `json:"mediaId"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

func RoomMessagesEvent(messages []Message) Event {
	if messages == nil {
		messages = []Message{}
	}
	return Event{Type: EventRoomMessages, Messages: messages}
}

func NewMessageEvent(msg Message) Event {
	return Event{Type: EventNewMessage, Message: &msg}
}

func NewMediaEvent(msg Message, ref MediaRef) Event {
	return Event{Type: EventNewMedia, Message: &msg, Media: &ref}
}

func ParticipantsUpdateEvent(participants []Participant) Event {
	if participants == nil {
		participants = []Participant{}
	}
	return Event{Type: EventParticipantsUpdate, Participants: participants}
}

func UserJoinedEvent(userName string) Event {
	return Event{Type: EventUserJoined, UserName: userName}
}

func UserTypingEvent(userName string, isTyping bool) Event {
	return Event{Type: EventUserTyping, UserName: userName, IsTyping: &isTyping}
}

func RoomDeletedEvent(roomID, text string) Event {
	return Event{Type: EventRoomDeleted, RoomID: roomID, Text: text}
}

func ErrorEvent(text string) Event {
	return Event{Type: EventError, Text: text}
}

// ClientEventType enumerates events a connected client may submit.
type ClientEventType string

const (
	ClientSendMessage ClientEventType = "send-message"
	ClientSendMedia   ClientEventType = "send-media"
	ClientTyping      ClientEventType = "typing"
	ClientLeave       ClientEventType = "leave"
)

// ClientEvent is the inbound frame on the push transport. Payloads are
// validated against these tags before being acted on.
type ClientEvent struct {
	Type      ClientEventType `json:"type" validate:"required,oneof=send-message send-media typing leave"`
	Body      string          `json:"body,omitempty" validate:"required_if=Type send-message,max=4000"`
	MediaID   string          `json:"mediaId,omitempty" validate:"required_if=Type send-media"`
	MessageID string          `json:"messageId,omitempty" validate:"required_if=Type send-media"`
	FileName  string          `json:"fileName,omitempty"`
	MimeType  string          `json:"mimeType,omitempty"`
	FileSize  int64           `json:"fileSize,omitempty"`
	IsTyping  bool            `json:"isTyping,omitempty"`
}
