package model

import (
	"time"

	"socialchat/global"
)

const (
	EventConversationCreated = "conversation.created"
	EventMessageSent         = "message.sent"
	EventMessageRead         = "message.read"
	EventMessageDeleted      = "message.deleted"
	EventUserOnline          = "user.online"
	EventUserOffline         = "user.offline"
)

// Event is a domain fact emitted to the message bus after the store has
// accepted the change.
type Event struct {
	Type           string    `json:"type"`
	OccurredAt     time.Time `json:"occurredAt"`
	ConversationID string    `json:"conversationId,omitempty"`
	MessageID      string    `json:"messageId,omitempty"`
	UserID         string    `json:"userId"`
	Payload        any       `json:"payload,omitempty"`
}

func NewEvent(typ, userID string) *Event {
	return &Event{Type: typ, UserID: userID, OccurredAt: time.Now().UTC()}
}

// Key groups events of one conversation, or of one user when there is none.
func (e *Event) Key() string {
	if e.ConversationID != "" {
		return global.TopicKeyConversation(e.ConversationID)
	}
	return global.TopicKeyUser(e.UserID)
}
