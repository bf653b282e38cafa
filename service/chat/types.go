package chat

import (
	"context"
	"encoding/json"
)

// Handler serves one inbound event.
type Handler interface {
	Event() string
	Handle(ctx *ChatContext, data json.RawMessage) (*Ack, error)
}

// ChatContext is what a handler sees of the connection and the server.
type ChatContext struct {
	context.Context
	S      *Server
	Client *Client
}

// UserID re-asserts that the connection carries an authenticated identity.
func (c *ChatContext) UserID() (string, error) {
	if c.Client == nil || c.Client.UserID == "" {
		return "", errUnauthorized()
	}
	return c.Client.UserID, nil
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Name string
	Fn   func(ctx *ChatContext, data json.RawMessage) (*Ack, error)
}

func (h HandlerFunc) Event() string { return h.Name }

func (h HandlerFunc) Handle(ctx *ChatContext, data json.RawMessage) (*Ack, error) {
	return h.Fn(ctx, data)
}
