package chat

import (
	"encoding/json"
	"time"

	"socialchat/module/chat/model"
	"socialchat/tools/errs"
	"socialchat/tools/ids"
)

// Client -> server events.
const (
	EventConversationCreate = "conversation:create"
	EventConversationJoin   = "conversation:join"
	EventConversationsGet   = "conversations:get"
	EventMessagesGet        = "messages:get"
	EventMessageSend        = "message:send"
	EventMessageRead        = "message:read"
	EventMessageDelete      = "message:delete"
	EventTypingStart        = "typing:start"
	EventTypingStop         = "typing:stop"
	EventUsersGetOnline     = "users:getOnline"
)

// Server -> client events.
const (
	EventAck                 = "ack"
	EventConversationCreated = "conversation:created"
	EventMessageNew          = "message:new"
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
	EventError               = "error"
)

// InboundFrame is what a client sends: an event name, an optional id the
// ack echoes back, and the event payload.
type InboundFrame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is an ack or a push.
type OutboundFrame struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Ack is the synchronous outcome of one inbound event.
type Ack struct {
	Success     bool        `json:"success"`
	Data        any         `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
	Code        string      `json:"code,omitempty"`
	UserDetails *model.User `json:"userDetails,omitempty"`
}

func OK(data any) *Ack {
	return &Ack{Success: true, Data: data}
}

// Fail renders err with its stable code; internal failures carry a generic message.
func Fail(err error) *Ack {
	return &Ack{
		Success: false,
		Error:   errs.Message(err),
		Code:    errs.Name(errs.Code(err)),
	}
}

func ParseFrameJSON(raw []byte) (*InboundFrame, error) {
	frame := &InboundFrame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, errs.ErrValidation.WrapMsg("Invalid frame")
	}
	if frame.Event == "" {
		return nil, errs.ErrValidation.WrapMsg("Invalid frame: event is required")
	}
	return frame, nil
}

func EncodeFrame(event, id string, data any) ([]byte, error) {
	b, err := json.Marshal(&OutboundFrame{Event: event, ID: id, Data: data})
	if err != nil {
		return nil, errs.WrapMsg(err, "encode frame", "event", event)
	}
	return b, nil
}

// ---- payloads ----

type CreateConversationPayload struct {
	ParticipantIDs []string `json:"participantIds"`
}

func (p *CreateConversationPayload) Validate() error {
	if p.ParticipantIDs == nil {
		return errs.ErrValidation.WrapMsg("participantIds must be an array")
	}
	for _, id := range p.ParticipantIDs {
		if !ids.IsUUID(id) {
			return errs.ErrValidation.WrapMsg("each value in participantIds must be a UUID")
		}
	}
	return nil
}

type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

func (p *ConversationRef) Validate() error {
	if !ids.IsUUID(p.ConversationID) {
		return errs.ErrValidation.WrapMsg("conversationId must be a UUID")
	}
	return nil
}

type MessagesPagePayload struct {
	ConversationID string `json:"conversationId"`
	Limit          *int   `json:"limit,omitempty"`
	Offset         *int   `json:"offset,omitempty"`
}

func (p *MessagesPagePayload) Validate() error {
	if !ids.IsUUID(p.ConversationID) {
		return errs.ErrValidation.WrapMsg("conversationId must be a UUID")
	}
	return nil
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

func (p *SendMessagePayload) Validate() error {
	if !ids.IsUUID(p.ConversationID) {
		return errs.ErrValidation.WrapMsg("conversationId must be a UUID")
	}
	if p.Content == "" {
		return errs.ErrValidation.WrapMsg("content should not be empty")
	}
	if p.Type != "" && !model.MessageType(p.Type).Valid() {
		return errs.ErrValidation.WrapMsg("type must be one of text, image")
	}
	return nil
}

type MessageRef struct {
	MessageID string `json:"messageId"`
}

func (p *MessageRef) Validate() error {
	if !ids.IsUUID(p.MessageID) {
		return errs.ErrValidation.WrapMsg("messageId must be a UUID")
	}
	return nil
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

func (p *TypingPayload) Validate() error {
	if !ids.IsUUID(p.ConversationID) {
		return errs.ErrValidation.WrapMsg("conversationId must be a UUID")
	}
	return nil
}

// ---- pushes ----

type PresenceEvent struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type ReadReceipt struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
