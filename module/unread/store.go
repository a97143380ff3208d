package unread

import (
	"context"
	"errors"
	"time"

	"NapChat/module/unread/model"
	"NapChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store 未读计数的事务模型。增量路径靠文档级 $inc 原子化；
// 已读路径是“读快照再扣减”，两次写之间新到的消息可能被并发扣减吃掉，
// 与存量行为保持一致（见 MarkChatRead 注释）。
type Store struct {
	DB *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{DB: db}
}

func (s *Store) counters() *mongo.Collection { return s.DB.Collection(model.CounterColl) }
func (s *Store) families() *mongo.Collection { return s.DB.Collection(model.FamilyColl) }
func (s *Store) messages() *mongo.Collection { return s.DB.Collection(model.MessageColl) }

// EnsureCounter 懒建全零计数器；幂等。
func (s *Store) EnsureCounter(ctx context.Context, userID, childID string) error {
	zero := NewCounter(userID, childID)
	_, err := s.counters().UpdateOne(ctx,
		bson.M{"_id": zero.ID},
		bson.M{"$setOnInsert": zero},
		options.Update().SetUpsert(true),
	)
	return errs.WrapMsg(err, "ensure counter", "userId", userID, "childId", childID)
}

// IncrementForRecipients 新消息落库后的计数阶段：对每个收件人 +1，
// 并在同一事务里把 message.read_by[收件人] 置 false。一次提交。
func (s *Store) IncrementForRecipients(ctx context.Context, recipients []string, childID, messageID string, isLogComment bool, logID string) error {
	if len(recipients) == 0 {
		return nil
	}
	for _, uid := range recipients {
		if err := s.EnsureCounter(ctx, uid, childID); err != nil {
			return err
		}
	}

	inc := bson.M{"total_unread_count": 1}
	if isLogComment {
		inc["log_unread_count"] = 1
		inc["log_unread_by_log_id."+logID] = 1
	} else {
		inc["chat_unread_count"] = 1
	}
	now := time.Now().UnixMilli()

	var counterWrites []mongo.WriteModel
	readBy := bson.M{}
	for _, uid := range recipients {
		counterWrites = append(counterWrites, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": CounterKey(uid, childID)}).
			SetUpdate(bson.M{"$inc": inc, "$set": bson.M{"last_updated": now}}))
		readBy["read_by."+uid] = false
	}

	sess, err := s.DB.Client().StartSession()
	if err != nil {
		return errs.Wrap(err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.counters().BulkWrite(sc, counterWrites); err != nil {
			return nil, err
		}
		if _, err := s.messages().UpdateOne(sc, bson.M{"_id": messageID}, bson.M{"$set": readBy}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return errs.WrapMsg(err, "increment for recipients", "messageId", messageID)
}

// GetCounter 读计数器；不存在不算错，返回全零。
func (s *Store) GetCounter(ctx context.Context, userID, childID string) (*model.UnreadCounter, error) {
	var c model.UnreadCounter
	err := s.counters().FindOne(ctx, bson.M{"_id": CounterKey(userID, childID)}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewCounter(userID, childID), nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get counter", "userId", userID, "childId", childID)
	}
	if c.LogUnreadByLogID == nil {
		c.LogUnreadByLogID = map[string]int64{}
	}
	return &c, nil
}

// MarkChatRead 清聊天未读。扣减量取自刚读到的快照，不做假设；
// 快照与写入之间新到的消息会被一并扣掉（已接受的竞态，不在此处修）。
// 第二批把该会话所有聊天消息的 read_by[userId] 翻 true，返回翻动条数。
func (s *Store) MarkChatRead(ctx context.Context, userID, childID, conversationID string) (int64, error) {
	c, err := s.GetCounter(ctx, userID, childID)
	if err != nil {
		return 0, err
	}
	n := c.ChatUnreadCount
	if n == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	_, err = s.counters().UpdateOne(ctx,
		bson.M{"_id": c.ID},
		bson.M{
			"$set": bson.M{"chat_unread_count": 0, "last_updated": now},
			"$inc": bson.M{"total_unread_count": -n},
		},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "mark chat read", "userId", userID)
	}

	res, err := s.messages().UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"child_id":        childID,
			"log_id":          bson.M{"$in": bson.A{nil, ""}},
			"read_by." + userID: false,
		},
		bson.M{"$set": bson.M{"read_by." + userID: true}},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "flip chat read_by", "userId", userID)
	}
	return res.ModifiedCount, nil
}

// MarkLogRead 清单条日志的未读；只动该 logId 槽位。
func (s *Store) MarkLogRead(ctx context.Context, userID, childID, logID string) (int64, error) {
	c, err := s.GetCounter(ctx, userID, childID)
	if err != nil {
		return 0, err
	}
	n := c.LogUnreadByLogID[logID]
	if n == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	_, err = s.counters().UpdateOne(ctx,
		bson.M{"_id": c.ID},
		bson.M{
			"$set": bson.M{"log_unread_by_log_id." + logID: 0, "last_updated": now},
			"$inc": bson.M{"log_unread_count": -n, "total_unread_count": -n},
		},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "mark log read", "userId", userID, "logId", logID)
	}

	res, err := s.messages().UpdateMany(ctx,
		bson.M{"child_id": childID, "log_id": logID, "read_by." + userID: false},
		bson.M{"$set": bson.M{"read_by." + userID: true}},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "flip log read_by", "userId", userID, "logId", logID)
	}
	return res.ModifiedCount, nil
}

// MarkAllLogsRead 清该 child 全部日志未读，整个 map 归零。
func (s *Store) MarkAllLogsRead(ctx context.Context, userID, childID string) (int64, error) {
	c, err := s.GetCounter(ctx, userID, childID)
	if err != nil {
		return 0, err
	}
	n := c.LogUnreadCount
	if n == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	_, err = s.counters().UpdateOne(ctx,
		bson.M{"_id": c.ID},
		bson.M{
			"$set": bson.M{"log_unread_count": 0, "log_unread_by_log_id": bson.M{}, "last_updated": now},
			"$inc": bson.M{"total_unread_count": -n},
		},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "mark all logs read", "userId", userID)
	}

	res, err := s.messages().UpdateMany(ctx,
		bson.M{
			"child_id":          childID,
			"log_id":            bson.M{"$exists": true, "$nin": bson.A{nil, ""}},
			"read_by." + userID: false,
		},
		bson.M{"$set": bson.M{"read_by." + userID: true}},
	)
	if err != nil {
		return 0, errs.WrapMsg(err, "flip all log read_by", "userId", userID)
	}
	return res.ModifiedCount, nil
}

// RecomputeFamily 重算并落盘家庭聚合。siblings 为空时退化为单成员家庭
// （聚合 == 个人计数）。整体重算，不做增量。
func (s *Store) RecomputeFamily(ctx context.Context, userID, originalChildID string, siblings []string) (*model.FamilyUnreadCounter, error) {
	members := FamilyMembers(originalChildID, siblings)
	counters := make([]*model.UnreadCounter, 0, len(members))
	for _, childID := range members {
		c, err := s.GetCounter(ctx, userID, childID)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	fam := ComputeFamily(userID, originalChildID, counters)

	_, err := s.families().ReplaceOne(ctx,
		bson.M{"_id": fam.ID},
		fam,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "recompute family", "userId", userID, "originalChildId", originalChildID)
	}
	return fam, nil
}
