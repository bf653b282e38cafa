package model

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageImage
}

// Message belongs to exactly one conversation. Only IsRead changes after
// creation.
type Message struct {
	ID             string      `bson:"_id" json:"id"`
	ConversationID string      `bson:"conversation_id" json:"conversationId"`
	SenderID       string      `bson:"sender_id" json:"senderId"`
	Sender         *User       `bson:"-" json:"sender,omitempty"`
	Content        string      `bson:"content" json:"content"`
	Type           MessageType `bson:"type" json:"type"`
	ImageURL       string      `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	IsRead         bool        `bson:"is_read" json:"isRead"`
	// Seq breaks ties between messages created in the same instant.
	Seq       int64     `bson:"seq" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (m *Message) GetTableName() string {
	return "messages"
}

// Newer reports whether m sorts after o in conversation order.
func (m *Message) Newer(o *Message) bool {
	if o == nil {
		return true
	}
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.After(o.CreatedAt)
	}
	return m.Seq > o.Seq
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Sender != nil {
		s := *m.Sender
		cp.Sender = &s
	}
	return &cp
}
