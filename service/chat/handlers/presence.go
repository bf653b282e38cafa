package handlers

import (
	"encoding/json"

	"socialchat/service/chat"
)

type OnlineUsersHandler struct{}

func NewOnlineUsersHandler() chat.Handler   { return &OnlineUsersHandler{} }
func (h *OnlineUsersHandler) Event() string { return chat.EventUsersGetOnline }

func (h *OnlineUsersHandler) Handle(ctx *chat.ChatContext, _ json.RawMessage) (*chat.Ack, error) {
	if _, err := ctx.UserID(); err != nil {
		return nil, err
	}
	return chat.OK(ctx.S.Registry().OnlineUserIDs()), nil
}
