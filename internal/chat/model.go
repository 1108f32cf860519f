package chat

import (
	"fmt"
	"time"
)

type MessageType string

const (
	TypeText   MessageType = "text"
	TypeFile   MessageType = "file"
	TypeSystem MessageType = "system"
)

// Message is the unit of communication. Exactly one of RecipientID
// (direct) or ProjectID (group) is set; zero means absent. Immutable
// after persistence except for the IsRead flag.
type Message struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`
	SenderID    int         `json:"sender_id"`
	SenderName  string      `json:"sender_name,omitempty"`
	RecipientID int         `json:"recipient_id,omitempty"`
	ProjectID   int         `json:"project_id,omitempty"`
	Type        MessageType `json:"type"`
	IsRead      bool        `json:"is_read"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ConversationSummary is one inbox row: a direct-message partner with
// the latest exchanged message and how many of theirs are still unread.
type ConversationSummary struct {
	PartnerID   int      `json:"partner_id"`
	PartnerName string   `json:"partner_name"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}

// Room keys address live fan-out. A room is not a stored entity; it
// exists while at least one connection is subscribed to it.

func UserRoom(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

func ProjectRoom(projectID int) string {
	return fmt.Sprintf("project:%d", projectID)
}

// roomKey maps a client-supplied kind to a room key.
func roomKey(kind string, id int) (string, bool) {
	switch kind {
	case "user":
		return UserRoom(id), true
	case "project":
		return ProjectRoom(id), true
	}
	return "", false
}
