package handlers

import (
	"encoding/json"

	"socialchat/module/chat/model"
	chatsvc "socialchat/module/chat/service"
	"socialchat/service/chat"
	"socialchat/tools/decode"
	"socialchat/tools/safe"
)

type GetMessagesHandler struct{}

func NewGetMessagesHandler() chat.Handler   { return &GetMessagesHandler{} }
func (h *GetMessagesHandler) Event() string { return chat.EventMessagesGet }

func (h *GetMessagesHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.MessagesPagePayload](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	limit := safe.ClampInt(safe.DefaultInt(p.Limit, chatsvc.DefaultPageLimit), 1, chatsvc.MaxPageLimit)
	offset := safe.DefaultInt(p.Offset, 0)

	msgs, err := ctx.S.Chat().ListMessages(ctx, uid, p.ConversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return chat.OK(msgs), nil
}

type SendMessageHandler struct{}

func NewSendMessageHandler() chat.Handler   { return &SendMessageHandler{} }
func (h *SendMessageHandler) Event() string { return chat.EventMessageSend }

// Handle persists the message, ends the sender's typing indicator and
// pushes message:new to the room. The sending connection only gets the ack.
func (h *SendMessageHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.SendMessagePayload](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	msg, err := ctx.S.Chat().SendMessage(ctx, uid, chatsvc.SendInput{
		ConversationID: p.ConversationID,
		Content:        p.Content,
		Type:           model.MessageType(p.Type),
		ImageURL:       p.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	connID := ctx.Client.ConnID
	ctx.S.StopTyping(msg.ConversationID, uid, connID)
	ctx.S.BroadcastConversation(msg.ConversationID, chat.EventMessageNew, msg, connID)

	evt := model.NewEvent(model.EventMessageSent, uid)
	evt.ConversationID = msg.ConversationID
	evt.MessageID = msg.ID
	evt.Payload = msg
	ctx.S.Publish(evt)

	return chat.OK(msg), nil
}

type ReadMessageHandler struct{}

func NewReadMessageHandler() chat.Handler   { return &ReadMessageHandler{} }
func (h *ReadMessageHandler) Event() string { return chat.EventMessageRead }

func (h *ReadMessageHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.MessageRef](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	msg, err := ctx.S.Chat().MarkRead(ctx, uid, p.MessageID)
	if err != nil {
		return nil, err
	}
	ctx.S.BroadcastConversation(msg.ConversationID, chat.EventMessageRead, &chat.ReadReceipt{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		ReadBy:         uid,
	}, "")

	evt := model.NewEvent(model.EventMessageRead, uid)
	evt.ConversationID = msg.ConversationID
	evt.MessageID = msg.ID
	ctx.S.Publish(evt)

	return chat.OK(nil), nil
}

type DeleteMessageHandler struct{}

func NewDeleteMessageHandler() chat.Handler   { return &DeleteMessageHandler{} }
func (h *DeleteMessageHandler) Event() string { return chat.EventMessageDelete }

// Handle answers the caller only; the room is not told.
func (h *DeleteMessageHandler) Handle(ctx *chat.ChatContext, data json.RawMessage) (*chat.Ack, error) {
	uid, err := ctx.UserID()
	if err != nil {
		return nil, err
	}
	p, err := decode.Payload[chat.MessageRef](data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	msg, err := ctx.S.Chat().DeleteMessage(ctx, uid, p.MessageID)
	if err != nil {
		return nil, err
	}

	evt := model.NewEvent(model.EventMessageDeleted, uid)
	evt.ConversationID = msg.ConversationID
	evt.MessageID = msg.ID
	ctx.S.Publish(evt)

	return chat.OK(map[string]bool{"success": true}), nil
}
