package handlers

import (
	"encoding/json"

	"socialchat/global"
	"socialchat/module/chat/model"
	"socialchat/service/chat"
	"socialchat/tools/decode"
	"socialchat/tools/errs"
)

type CreateConversationHandler struct{}

func NewCreateConversationHandler() chat.Handler   { return &CreateConversationHandler{} }
func (h *CreateConversationHandler) Event() string { return chat.EventConversationCreate }

// Handle creates (or finds) the conversation, joins every connected
// participant to its room and announces it there.
func (h *CreateConversationHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.CreateConversationPayload](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	conv, err := ctx.S.Chat().CreateConversation(ctx, uid, p.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	room := global.RoomKey(conv.ID)
	for _, pid := range conv.ParticipantIDs {
		ctx.S.JoinUser(pid, room)
	}
	ctx.S.BroadcastRoom(room, chat.EventConversationCreated, conv, "")

	evt := model.NewEvent(model.EventConversationCreated, uid)
	evt.ConversationID = conv.ID
	evt.Payload = conv.ParticipantIDs
	ctx.S.Publish(evt)

	return chat.OK(conv), nil
}

type JoinConversationHandler struct{}

func NewJoinConversationHandler() chat.Handler   { return &JoinConversationHandler{} }
func (h *JoinConversationHandler) Event() string { return chat.EventConversationJoin }

// Handle joins this connection to the room and answers with the profile of
// the other participant.
func (h *JoinConversationHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.ConversationRef](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	conv, err := ctx.S.Chat().GetConversation(ctx, uid, p.ConversationID)
	if err != nil {
		return nil, err
	}
	otherID, ok := conv.OtherParticipant(uid)
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("Other user not found")
	}
	other, err := ctx.S.Chat().FindUser(ctx, otherID)
	if err != nil {
		if errs.Code(err) == errs.NotFoundError {
			return nil, errs.ErrNotFound.WrapMsg("Other user not found")
		}
		return nil, err
	}

	ctx.S.Rooms().Join(global.RoomKey(conv.ID), ctx.Client.ConnID)
	return &chat.Ack{Success: true, UserDetails: other}, nil
}

type GetConversationsHandler struct{}

func NewGetConversationsHandler() chat.Handler   { return &GetConversationsHandler{} }
func (h *GetConversationsHandler) Event() string { return chat.EventConversationsGet }

func (h *GetConversationsHandler) Handle(ctx *chat.ChatContext, _ json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	convs, err := ctx.S.Chat().ListConversations(ctx, uid)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*model.Conversation{}
	}
	return chat.OK(convs), nil
}
