package fanout

import (
	"context"
	"sync"
	"sync/atomic"

	"NapChat/logger"
	"NapChat/module/directory"
	"NapChat/module/push/dispatch"
	"NapChat/module/unread/model"
	"NapChat/service/natsx"
	"NapChat/tools/ids"

	"go.uber.org/zap"
)

// CounterStore 管道需要的计数面。
type CounterStore interface {
	IncrementForRecipients(ctx context.Context, recipients []string, childID, messageID string, isLogComment bool, logID string) error
	RecomputeFamily(ctx context.Context, userID, originalChildID string, siblings []string) (*model.FamilyUnreadCounter, error)
	GetCounter(ctx context.Context, userID, childID string) (*model.UnreadCounter, error)
}

// Directory 收件人目录。
type Directory interface {
	Resolve(ctx context.Context, childID, senderID string) directory.Resolution
}

// Pusher 推送广播面。
type Pusher interface {
	DispatchToAllApps(ctx context.Context, ids dispatch.GroupIDs, title, body string, data map[string]any) (bool, []dispatch.AppResult)
}

// MessageCreatedEvent 消息创建事件（外部分配的 message id + 全量记录）。
type MessageCreatedEvent struct {
	MessageID       string   `json:"messageId"`
	SenderID        string   `json:"senderId"`
	ConversationID  string   `json:"conversationId"`
	ChildID         string   `json:"childId"`
	LogID           string   `json:"logId"`
	Text            string   `json:"text"`
	ImageRef        string   `json:"imageRef"`
	AudioRef        string   `json:"audioRef"`
	OriginalChildID string   `json:"originalChildId"`
	Siblings        []string `json:"siblings"`
}

func (e *MessageCreatedEvent) isLogComment() bool { return e.LogID != "" }

// Orchestrator 每条新消息触发一次的单趟管道，无自有持久状态。
// 四个阶段各自兜错：任何阶段失败只记日志，绝不向触发方传播
// （消息创建本身不可回滚，没有可传播的对象）。
type Orchestrator struct {
	Dir      Directory
	Counters CounterStore
	Pusher   Pusher
	Version  string // dev / test / production
	LinkBase string
}

// OnMessageCreated 管道入口。
func (o *Orchestrator) OnMessageCreated(ctx context.Context, ev *MessageCreatedEvent) {
	// 1) 解析收件人。目录失败 → 这条消息没有计数也没有通知，只留日志。
	res := o.Dir.Resolve(ctx, ev.ChildID, ev.SenderID)
	recipients := make([]*directory.Recipient, 0, len(res.Recipients))
	for i := range res.Recipients {
		if res.Recipients[i].UserID == ev.SenderID || res.Recipients[i].UserID == "" {
			continue
		}
		recipients = append(recipients, &res.Recipients[i])
	}
	if len(recipients) == 0 {
		logger.Error("fanout: no recipients resolved, skipping counters and notifications",
			zap.String("messageId", ev.MessageID),
			zap.String("childId", ev.ChildID),
			zap.String("senderId", ev.SenderID))
		return
	}

	// 2) 计数阶段：所有收件人合一个批次，一次提交。
	userIDs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		userIDs = append(userIDs, r.UserID)
	}
	counted := true
	if err := o.Counters.IncrementForRecipients(ctx, userIDs, ev.ChildID, ev.MessageID, ev.isLogComment(), ev.LogID); err != nil {
		counted = false
		logger.Error("fanout: counter phase failed", zap.String("messageId", ev.MessageID), zap.Error(err))
	}

	// 3) 家庭阶段：尽力而为，与计数阶段成败无关。
	o.familyPhase(ctx, ev, userIDs)

	// 4) 通知阶段：逐收件人并发，等全员、容个体失败，结果只用于日志。
	notified := o.notifyPhase(ctx, ev, res, recipients)
	logger.Info("fanout: done",
		zap.String("messageId", ev.MessageID),
		zap.Int("recipients", len(recipients)),
		zap.Bool("counted", counted),
		zap.Int("notified", notified))
}

func (o *Orchestrator) familyPhase(ctx context.Context, ev *MessageCreatedEvent, userIDs []string) {
	for _, uid := range userIDs {
		originalChildID := ev.OriginalChildID
		siblings := ev.Siblings
		if originalChildID == "" {
			// 无家庭上下文：按单成员家庭重算，聚合 == 个人计数。
			originalChildID = ev.ChildID
			siblings = nil
		}
		if _, err := o.Counters.RecomputeFamily(ctx, uid, originalChildID, siblings); err != nil {
			logger.Error("fanout: family phase failed",
				zap.String("userId", uid), zap.String("originalChildId", originalChildID), zap.Error(err))
			continue
		}
		o.publishCounterUpdate(ctx, uid, ev.ChildID)
	}
}

func (o *Orchestrator) notifyPhase(ctx context.Context, ev *MessageCreatedEvent, res directory.Resolution, recipients []*directory.Recipient) int {
	title := NotificationTitle(res.SenderName)
	body := NotificationBody(ev.Text, ev.ImageRef, ev.AudioRef)
	link := BuildDeepLink(o.LinkBase, o.Version, ev.isLogComment(), ev.LogID, res.PrimaryCaregiverID, res.AltOrg)
	data := map[string]any{
		"onLoadUrl":  link,
		"childId":    ev.ChildID,
		"messageId":  ev.MessageID,
		"dispatchId": ids.GenerateString(), // 排查多端重复投递时对账用
	}

	var ok int64
	var wg sync.WaitGroup
	for _, r := range recipients {
		if len(r.PlayerIDs) == 0 {
			logger.Info("fanout: recipient has no player ids, skipping",
				zap.String("userId", r.UserID), zap.String("messageId", ev.MessageID))
			continue
		}
		wg.Add(1)
		go func(r *directory.Recipient) {
			defer wg.Done()
			// 两个应用收同一份 id 列表：provider 侧按应用注册决定实际投递。
			ids := dispatch.GroupIDs{AppA: r.PlayerIDs, AppB: r.PlayerIDs}
			sent, results := o.Pusher.DispatchToAllApps(ctx, ids, title, body, data)
			if sent {
				atomic.AddInt64(&ok, 1)
			} else {
				logger.Warn("fanout: notification failed for recipient",
					zap.String("userId", r.UserID), zap.Any("results", results))
			}
		}(r)
	}
	wg.Wait()
	return int(ok)
}

func (o *Orchestrator) publishCounterUpdate(ctx context.Context, userID, childID string) {
	c, err := o.Counters.GetCounter(ctx, userID, childID)
	if err != nil || c == nil {
		return
	}
	natsx.PublishCounterUpdate(natsx.CounterUpdate{
		UserID:      userID,
		ChildID:     childID,
		ChatUnread:  c.ChatUnreadCount,
		LogUnread:   c.LogUnreadCount,
		TotalUnread: c.TotalUnreadCount,
	})
}
