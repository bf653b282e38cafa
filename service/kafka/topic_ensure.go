package kafka

import (
	"errors"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"socialchat/logger"
	"socialchat/tools/errs"
)

func strPtr(s string) *string { return &s }

// EnsureTopic creates topic when it does not exist yet. Existing topics are
// left as they are.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, c AppConfig) error {
	desc, err := admin.DescribeTopics([]string{topic})
	if err == nil && len(desc) == 1 && errors.Is(desc[0].Err, sarama.ErrNoError) {
		logger.Info("[Topic] exists", zap.String("topic", topic), zap.Int("partitions", len(desc[0].Partitions)))
		return nil
	}

	minISR := "1"
	if c.ReplicationFactor >= 3 {
		minISR = "2"
	}
	td := &sarama.TopicDetail{
		NumPartitions:     c.PartitionsPerTopic,
		ReplicationFactor: c.ReplicationFactor,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
	if err := admin.CreateTopic(topic, td, false); err != nil {
		var te *sarama.TopicError
		if errors.Is(err, sarama.ErrTopicAlreadyExists) || (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) {
			logger.Info("[Topic] exists (race)", zap.String("topic", topic))
			return nil
		}
		return errs.WrapMsg(err, "create topic", "topic", topic)
	}
	logger.Info("[Topic] created", zap.String("topic", topic),
		zap.Int32("partitions", c.PartitionsPerTopic), zap.Int16("rf", c.ReplicationFactor))
	return nil
}
