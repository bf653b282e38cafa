package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/module/chat/model"
)

func TestEventProducerPublish(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt model.Event
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		assert.Equal(t, model.EventMessageRead, evt.Type)
		assert.Equal(t, "c1", evt.ConversationID)
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewEventProducer(mp, "chat.events")
	evt := model.NewEvent(model.EventMessageRead, "u1")
	evt.ConversationID = "c1"

	require.NoError(t, p.Publish(context.Background(), evt))
	assert.Error(t, p.Publish(context.Background(), evt))
	require.NoError(t, p.Close())
}

func TestEventProducerKeysByConversation(t *testing.T) {
	p := NewEventProducer(mocks.NewSyncProducer(t, nil), "chat.events")
	defer p.Close()

	evt := model.NewEvent(model.EventUserOnline, "u1")
	msg, err := p.message(evt)
	require.NoError(t, err)
	key, _ := msg.Key.Encode()
	assert.Equal(t, "user:u1", string(key))

	evt.ConversationID = "c9"
	msg, err = p.message(evt)
	require.NoError(t, err)
	key, _ = msg.Key.Encode()
	assert.Equal(t, "conv:c9", string(key))
	assert.Equal(t, "chat.events", msg.Topic)
}

func TestEventProducerCanceledContext(t *testing.T) {
	p := NewEventProducer(mocks.NewSyncProducer(t, nil), "chat.events")
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, model.NewEvent(model.EventUserOffline, "u1")), context.Canceled)
}

func TestBuildBaseConfig(t *testing.T) {
	cfg := BuildBaseConfig(DefaultConfig())
	assert.True(t, cfg.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, cfg.Producer.Compression)
	assert.Equal(t, sarama.CompressionNone, compression("unknown"))
}
