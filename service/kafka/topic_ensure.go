package kafka

import (
	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// EnsureTopics 启动前按配置建 Topic（已存在则跳过）。
func EnsureTopics(admin sarama.ClusterAdmin, topics []string) error {
	existing, err := admin.ListTopics()
	if err != nil {
		return err
	}
	for _, t := range topics {
		if _, ok := existing[t]; ok {
			continue
		}
		detail := &sarama.TopicDetail{
			NumPartitions:     Cfg.PartitionsPerTopic,
			ReplicationFactor: Cfg.ReplicationFactor,
		}
		if err := admin.CreateTopic(t, detail, false); err != nil {
			if terr, ok := err.(*sarama.TopicError); ok && terr.Err == sarama.ErrTopicAlreadyExists {
				continue
			}
			return err
		}
		glog.Infof("[Kafka] created topic %s partitions=%d", t, Cfg.PartitionsPerTopic)
	}
	return nil
}
