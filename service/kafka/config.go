package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// AppConfig is the producer side configuration of the chat event log.
type AppConfig struct {
	Brokers             []string
	Topic               string
	PartitionsPerTopic  int32
	ReplicationFactor   int16
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	KafkaVersion        sarama.KafkaVersion
	AutoCreateTopic     bool
}

func DefaultConfig() AppConfig {
	return AppConfig{
		Brokers:             []string{"127.0.0.1:9092"},
		Topic:               "chat.events",
		PartitionsPerTopic:  8,
		ReplicationFactor:   1,
		ProducerRetries:     5,
		ProducerCompression: "snappy",
		KafkaVersion:        sarama.V2_1_0_0,
		AutoCreateTopic:     true,
	}
}

// BuildBaseConfig returns a sync producer config. The hash partitioner keeps
// every event of one conversation on one partition.
func BuildBaseConfig(c AppConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.KafkaVersion
	cfg.ClientID = "socialchat"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = compression(c.ProducerCompression)

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func compression(name string) sarama.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
