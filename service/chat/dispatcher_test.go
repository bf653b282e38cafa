package chat

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/tools/errs"
)

func newTestContext(userID string) *ChatContext {
	return &ChatContext{Context: context.Background(), Client: &Client{ConnID: "c1", UserID: userID}}
}

func TestDispatcherRoutesByEvent(t *testing.T) {
	d := NewDispatcher()
	d.Register(HandlerFunc{Name: "echo", Fn: func(ctx *ChatContext, data json.RawMessage) (*Ack, error) {
		return OK(string(data)), nil
	}}, HandlerFunc{Name: "nothing", Fn: func(*ChatContext, json.RawMessage) (*Ack, error) {
		return nil, nil
	}})
	require.NotNil(t, d.GetHandler("echo"))
	assert.Nil(t, d.GetHandler("missing"))

	ack := d.Dispatch(newTestContext("u"), &InboundFrame{Event: "echo", Data: json.RawMessage(`"x"`)})
	assert.True(t, ack.Success)
	assert.Equal(t, `"x"`, ack.Data)

	ack = d.Dispatch(newTestContext("u"), &InboundFrame{Event: "nothing"})
	assert.True(t, ack.Success)
	assert.Nil(t, ack.Data)
}

func TestDispatcherFailures(t *testing.T) {
	d := NewDispatcher()
	d.Register(
		HandlerFunc{Name: "boom", Fn: func(*ChatContext, json.RawMessage) (*Ack, error) {
			panic("boom")
		}},
		HandlerFunc{Name: "forbidden", Fn: func(*ChatContext, json.RawMessage) (*Ack, error) {
			return nil, errs.ErrForbidden.WrapMsg("You are not a participant in this conversation")
		}},
	)

	ack := d.Dispatch(newTestContext("u"), &InboundFrame{Event: "nope"})
	assert.False(t, ack.Success)
	assert.Equal(t, "VALIDATION", ack.Code)
	assert.Equal(t, "unknown event nope", ack.Error)

	ack = d.Dispatch(newTestContext("u"), &InboundFrame{Event: "boom"})
	assert.Equal(t, "INTERNAL", ack.Code)
	assert.Equal(t, "internal error", ack.Error)

	ack = d.Dispatch(newTestContext("u"), &InboundFrame{Event: "forbidden"})
	assert.Equal(t, "FORBIDDEN", ack.Code)
	assert.Equal(t, "You are not a participant in this conversation", ack.Error)

	// a connection without identity never reaches the handler
	ack = d.Dispatch(newTestContext(""), &InboundFrame{Event: "forbidden"})
	assert.Equal(t, "UNAUTHORIZED", ack.Code)
}
