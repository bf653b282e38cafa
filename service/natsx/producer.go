package natsx

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"socialchat/module/chat/model"
	"socialchat/tools/errs"
	"socialchat/tools/ids"
)

const (
	HeaderMsgID     = "Nats-Msg-Id"
	HeaderEventType = "Chat-Event-Type"
	HeaderKey       = "Chat-Key"
)

// NatsxProducer publishes chat domain events on <prefix>.<type>.
type NatsxProducer struct {
	c      *NatsxClient
	prefix string
}

func NewNatsxProducer(c *NatsxClient, subjectPrefix string) *NatsxProducer {
	if subjectPrefix == "" {
		subjectPrefix = "chat"
	}
	return &NatsxProducer{c: c, prefix: subjectPrefix}
}

func (p *NatsxProducer) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NatsxProducer) Publish(ctx context.Context, evt *model.Event) error {
	msg, err := p.message(evt)
	if err != nil {
		return err
	}
	return p.c.send(ctx, msg)
}

// message carries a fresh Nats-Msg-Id so a JetStream stream can drop
// duplicates of a retried publish.
func (p *NatsxProducer) message(evt *model.Event) (*nats.Msg, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode event", "type", evt.Type)
	}
	msg := nats.NewMsg(p.Subject(evt.Type))
	msg.Data = data
	msg.Header.Set(HeaderMsgID, ids.NewUUID())
	msg.Header.Set(HeaderEventType, evt.Type)
	msg.Header.Set(HeaderKey, evt.Key())
	return msg, nil
}
