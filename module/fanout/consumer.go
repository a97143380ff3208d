package fanout

import (
	"context"

	"NapChat/logger"
	ka "NapChat/service/kafka"
	"NapChat/tools/decode"

	"go.uber.org/zap"
)

// HandlerMessageCreated 把 kafka 事件接到管道上。
// 解码失败只记日志并吞掉：坏事件重投也不会变好。
func HandlerMessageCreated(o *Orchestrator) ka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		ev, err := decode.JSON[MessageCreatedEvent](value)
		if err != nil {
			logger.Error("fanout: bad message-created event",
				zap.ByteString("key", key), zap.Error(err))
			return nil
		}
		if ev.MessageID == "" || ev.ChildID == "" {
			logger.Error("fanout: event missing messageId/childId", zap.ByteString("value", value))
			return nil
		}
		o.OnMessageCreated(ctx, ev)
		return nil
	}
}
