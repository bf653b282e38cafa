package handlers

import (
	"encoding/json"

	"socialchat/global"
	"socialchat/service/chat"
	"socialchat/tools/decode"
	"socialchat/tools/errs"
)

func typingPayload(data json.RawMessage) (*chat.TypingPayload, error) {
	p, err := decode.Payload[chat.TypingPayload](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

type TypingStartHandler struct{}

func NewTypingStartHandler() chat.Handler   { return &TypingStartHandler{} }
func (h *TypingStartHandler) Event() string { return chat.EventTypingStart }

// Handle broadcasts on every call, repeated starts included.
func (h *TypingStartHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := typingPayload(data)
	if err != nil {
		return nil, err
	}
	// only sockets in the room may signal into it
	if !ctx.S.Rooms().IsMember(global.RoomKey(p.ConversationID), ctx.Client.ConnID) {
		return nil, errs.ErrForbidden.WrapMsg("You are not a participant in this conversation")
	}

	ctx.S.Registry().SetTyping(p.ConversationID, uid)
	ctx.S.BroadcastConversation(p.ConversationID, chat.EventTypingStart,
		&chat.TypingEvent{ConversationID: p.ConversationID, UserID: uid}, ctx.Client.ConnID)
	return chat.OK(nil), nil
}

type TypingStopHandler struct{}

func NewTypingStopHandler() chat.Handler   { return &TypingStopHandler{} }
func (h *TypingStopHandler) Event() string { return chat.EventTypingStop }

// Handle broadcasts only when the user was actually marked typing.
func (h *TypingStopHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := typingPayload(data)
	if err != nil {
		return nil, err
	}
	ctx.S.StopTyping(p.ConversationID, uid, ctx.Client.ConnID)
	return chat.OK(nil), nil
}
