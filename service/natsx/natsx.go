package natsx

import (
	"encoding/json"
	"sync"
	"time"

	"NapChat/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var (
	natsOnce sync.Once
	natsConn *nats.Conn
)

// Config 用于初始化 NATS
type Config struct {
	URL  string
	Name string
}

// Init 初始化 NATS 连接（单例）；失败只记录，发布按“不可用”降级。
func Init(c Config) error {
	var initErr error
	natsOnce.Do(func() {
		nc, err := nats.Connect(c.URL,
			nats.Name(c.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			initErr = err
			return
		}
		natsConn = nc
	})
	return initErr
}

// CounterUpdate 未读角标刷新事件，发到 unread.updated.<userId>。
type CounterUpdate struct {
	UserID      string `json:"userId"`
	ChildID     string `json:"childId"`
	ChatUnread  int64  `json:"chatUnreadCount"`
	LogUnread   int64  `json:"logUnreadCount"`
	TotalUnread int64  `json:"totalUnreadCount"`
	UpdatedAtMS int64  `json:"updatedAtMs"`
}

// PublishCounterUpdate 尽力而为：连接缺失或发布失败只打日志，绝不向上抛。
func PublishCounterUpdate(ev CounterUpdate) {
	if natsConn == nil {
		return
	}
	if ev.UpdatedAtMS == 0 {
		ev.UpdatedAtMS = time.Now().UnixMilli()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal counter update", zap.Error(err))
		return
	}
	if err := natsConn.Publish("unread.updated."+ev.UserID, b); err != nil {
		logger.Warn("publish counter update", zap.String("userId", ev.UserID), zap.Error(err))
	}
}

// Close 关闭连接
func Close() {
	if natsConn != nil {
		natsConn.Close()
	}
}
