package kafka

import "github.com/Shopify/sarama"

// AppConfig In-code 配置（不读 YAML），env 覆盖见 global。
type AppConfig struct {
	Brokers                 []string
	GroupID                 string
	MessageCreatedTopic     string // 每条新消息一个事件
	PartitionsPerTopic      int32
	ReplicationFactor       int16
	ProducerRetries         int
	ConsumerInitialOffset   string // newest/oldest
	KafkaVersion            sarama.KafkaVersion
	AutoCreateTopicsOnStart bool
}

// Cfg 默认配置（可直接改）
var Cfg = AppConfig{
	Brokers:                 []string{"127.0.0.1:9092"},
	GroupID:                 "napchat-fanout-1",
	MessageCreatedTopic:     "nap.message.created",
	PartitionsPerTopic:      8,
	ReplicationFactor:       1,
	ProducerRetries:         5,
	ConsumerInitialOffset:   "newest",
	KafkaVersion:            sarama.V2_1_0_0,
	AutoCreateTopicsOnStart: true,
}
