package chat

import (
	"encoding/json"
	"log"
	"time"
)

// Live channel event names. Inbound events are dispatched by name;
// outbound events are wrapped in the same envelope.
const (
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"

	EventConnected  = "connected"
	EventJoined     = "joined_chat"
	EventNewMessage = "new_message"
	EventUserTyping = "user_typing"
	EventMarkedRead = "messages_marked_read"
	EventError      = "error"
)

// Envelope frames every message on the live channel, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	Type string `json:"type"` // "user" or "project"
	ID   int    `json:"id"`
}

type sendPayload struct {
	Content     string `json:"content"`
	RecipientID int    `json:"recipient_id,omitempty"`
	ProjectID   int    `json:"project_id,omitempty"`
}

type typingPayload struct {
	Type     string `json:"type"`
	ID       int    `json:"id"`
	IsTyping bool   `json:"is_typing"`
}

type markReadPayload struct {
	MessageIDs []int64 `json:"message_ids"`
}

type connectedPayload struct {
	UserID int `json:"user_id"`
}

type joinedPayload struct {
	Room string `json:"room"`
}

type newMessagePayload struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
	IsOwn      bool      `json:"is_own"`
}

type userTypingPayload struct {
	UserID   int    `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type markedReadPayload struct {
	MessageIDs []int64 `json:"message_ids"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func marshalEvent(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return nil
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("marshal %s envelope: %v", event, err)
		return nil
	}
	return payload
}
