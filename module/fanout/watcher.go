package fanout

import (
	"context"
	"encoding/json"
	"time"

	"NapChat/logger"
	"NapChat/module/unread/model"
	ka "NapChat/service/kafka"
	"NapChat/tools/safe"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StartWatcher 消息集合的 change stream → kafka 事件桥。
// 每条 insert 发一个事件，key 取 childId，同一 child 串行消费。
// 断流后退避重开，运行到 ctx.Done() 为止。
func StartWatcher(ctx context.Context, db *mongo.Database) {
	safe.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := watchOnce(ctx, db); err != nil {
				logger.Errorf("watcher: change stream closed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	})
}

func watchOnce(ctx context.Context, db *mongo.Database) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}
	cs, err := db.Collection(model.MessageColl).Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return err
	}
	defer func() { _ = cs.Close(ctx) }()

	for cs.Next(ctx) {
		var change struct {
			FullDocument model.Message `bson:"fullDocument"`
		}
		if err := cs.Decode(&change); err != nil {
			logger.Errorf("watcher: decode change: %v", err)
			continue
		}
		publishCreated(&change.FullDocument)
	}
	return cs.Err()
}

func publishCreated(m *model.Message) {
	ev := MessageCreatedEvent{
		MessageID:       m.ID,
		SenderID:        m.SenderID,
		ConversationID:  m.ConversationID,
		ChildID:         m.ChildID,
		LogID:           m.LogID,
		Text:            m.Text,
		ImageRef:        m.ImageRef,
		AudioRef:        m.AudioRef,
		OriginalChildID: m.OriginalChildID,
		Siblings:        m.Siblings,
	}
	b, err := json.Marshal(&ev)
	if err != nil {
		logger.Errorf("watcher: marshal event: %v", err)
		return
	}
	if err := ka.SendSync(ka.Cfg.MessageCreatedTopic, m.ChildID, b); err != nil {
		logger.Errorf("watcher: publish message-created: %v", err)
	}
}
