package kafka

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// MessageHandler 单 topic 的消费回调；ctx 来自消费组会话，
// 组关闭/再均衡时随之取消。返回错误只记日志，消息照常 mark。
type MessageHandler func(ctx context.Context, key, value []byte) error

var (
	handlerMu sync.RWMutex
	handlers  = map[string]MessageHandler{}
)

// RegisterHandler 注册 topic 回调；重复注册以后者为准。
func RegisterHandler(topic string, h MessageHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	handlers[topic] = h
}

func handlerFor(topic string) MessageHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return handlers[topic]
}

type ConsumerGroupHandler struct{}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	glog.Info("[Kafka] consumer group setup")
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	glog.Info("[Kafka] consumer group cleanup")
	return nil
}

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if handler := handlerFor(msg.Topic); handler == nil {
			glog.Infof("[Kafka] no handler for topic %s", msg.Topic)
		} else if err := handler(session.Context(), msg.Key, msg.Value); err != nil {
			glog.Infof("[Kafka] handler error for topic %s: %v", msg.Topic, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func StartConsumerGroup(ctx context.Context, brokers []string, groupID string, topics []string) error {
	group, err := sarama.NewConsumerGroup(brokers, groupID, BuildBaseConfig())
	if err != nil {
		return err
	}

	go func() {
		for err := range group.Errors() {
			glog.Infof("[Kafka] consumer group error: %v", err)
		}
	}()

	handler := &ConsumerGroupHandler{}
	for {
		select {
		case <-ctx.Done():
			return group.Close()
		default:
		}
		if err := group.Consume(ctx, topics, handler); err != nil {
			glog.Infof("[Kafka] consume error: %v", err)
		}
	}
}
