package natsx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/module/chat/model"
)

func TestProducerMessage(t *testing.T) {
	p := NewNatsxProducer(nil, "im")
	evt := model.NewEvent(model.EventMessageSent, "u1")
	evt.ConversationID = "c1"
	evt.MessageID = "m1"

	msg, err := p.message(evt)
	require.NoError(t, err)
	assert.Equal(t, "im.message.sent", msg.Subject)
	assert.Equal(t, model.EventMessageSent, msg.Header.Get(HeaderEventType))
	assert.Equal(t, "conv:c1", msg.Header.Get(HeaderKey))
	assert.Len(t, msg.Header.Get(HeaderMsgID), 36)

	var back model.Event
	require.NoError(t, json.Unmarshal(msg.Data, &back))
	assert.Equal(t, "m1", back.MessageID)
	assert.Equal(t, "u1", back.UserID)
}

func TestProducerDefaultPrefix(t *testing.T) {
	assert.Equal(t, "chat.user.online", NewNatsxProducer(nil, "").Subject(model.EventUserOnline))
}

func TestClientRequiresServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}
