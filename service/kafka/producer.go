package kafka

import (
	"context"
	"encoding/json"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"socialchat/logger"
	"socialchat/module/chat/model"
	"socialchat/tools/errs"
)

// EventProducer writes chat domain events to one topic, keyed by
// conversation (or user for presence events).
type EventProducer struct {
	producer sarama.SyncProducer
	topic    string
	closers  []func() error
}

func NewEventProducer(p sarama.SyncProducer, topic string) *EventProducer {
	return &EventProducer{producer: p, topic: topic, closers: []func() error{p.Close}}
}

// Dial connects to the brokers, ensures the topic when asked to and
// returns a ready producer.
func Dial(c AppConfig) (*EventProducer, error) {
	cfg := BuildBaseConfig(c)
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	if c.AutoCreateTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		if err := EnsureTopic(admin, c.Topic, c); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka sync producer")
	}
	ep := NewEventProducer(p, c.Topic)
	ep.closers = append(ep.closers, client.Close)
	return ep, nil
}

func (p *EventProducer) Publish(ctx context.Context, evt *model.Event) error {
	msg, err := p.message(evt)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", p.topic, "type", evt.Type)
	}
	logger.Debug("[kafka] event sent", zap.String("type", evt.Type), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (p *EventProducer) message(evt *model.Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode event", "type", evt.Type)
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.Key()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(evt.Type)},
		},
		Timestamp: evt.OccurredAt,
	}, nil
}

func (p *EventProducer) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
