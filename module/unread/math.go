package unread

import (
	"fmt"
	"time"

	"NapChat/module/unread/model"
)

// CounterKey / FamilyKey 文档主键格式，与存量数据保持一致。
func CounterKey(userID, childID string) string {
	return fmt.Sprintf("user_%s_child_%s", userID, childID)
}

func FamilyKey(userID, originalChildID string) string {
	return fmt.Sprintf("user_%s_family_%s", userID, originalChildID)
}

// NewCounter 全零计数器。
func NewCounter(userID, childID string) *model.UnreadCounter {
	return &model.UnreadCounter{
		ID:               CounterKey(userID, childID),
		UserID:           userID,
		ChildID:          childID,
		LogUnreadByLogID: map[string]int64{},
		LastUpdated:      time.Now().UnixMilli(),
	}
}

// ApplyIncrement 新消息 +1：聊天走 chat，日志评论走 log + 对应 logId 槽位。
// mongo 路径用 $inc 做同构更新，这里的纯函数版本供家庭重算与测试复用。
func ApplyIncrement(c *model.UnreadCounter, isLogComment bool, logID string) {
	if isLogComment {
		if c.LogUnreadByLogID == nil {
			c.LogUnreadByLogID = map[string]int64{}
		}
		c.LogUnreadByLogID[logID]++
		c.LogUnreadCount++
	} else {
		c.ChatUnreadCount++
	}
	c.TotalUnreadCount++
	c.LastUpdated = time.Now().UnixMilli()
}

// ApplyChatReset 读快照扣减：返回本次清掉的未读数 N。
func ApplyChatReset(c *model.UnreadCounter) int64 {
	n := c.ChatUnreadCount
	if n == 0 {
		return 0
	}
	c.ChatUnreadCount = 0
	c.TotalUnreadCount -= n
	c.LastUpdated = time.Now().UnixMilli()
	return n
}

// ApplyLogReset 清单条日志的未读；其它 logId 槽位不动。
func ApplyLogReset(c *model.UnreadCounter, logID string) int64 {
	n := c.LogUnreadByLogID[logID]
	if n == 0 {
		return 0
	}
	c.LogUnreadByLogID[logID] = 0
	c.LogUnreadCount -= n
	c.TotalUnreadCount -= n
	c.LastUpdated = time.Now().UnixMilli()
	return n
}

// ApplyAllLogsReset 清全部日志未读，整个 map 归零。
func ApplyAllLogsReset(c *model.UnreadCounter) int64 {
	n := c.LogUnreadCount
	if n == 0 {
		return 0
	}
	c.LogUnreadCount = 0
	c.LogUnreadByLogID = map[string]int64{}
	c.TotalUnreadCount -= n
	c.LastUpdated = time.Now().UnixMilli()
	return n
}

// ComputeFamily 家庭聚合：日志未读对兄弟姐妹求和，聊天未读只取 original 一份
// （聊天线共享，日志线各自独立）。original 缺失时按全零处理。
func ComputeFamily(userID, originalChildID string, counters []*model.UnreadCounter) *model.FamilyUnreadCounter {
	fam := &model.FamilyUnreadCounter{
		ID:              FamilyKey(userID, originalChildID),
		UserID:          userID,
		OriginalChildID: originalChildID,
		LastUpdated:     time.Now().UnixMilli(),
	}
	for _, c := range counters {
		if c == nil {
			continue
		}
		fam.FamilyLogUnreadCount += c.LogUnreadCount
		if c.ChildID == originalChildID {
			fam.FamilyChatUnreadCount = c.ChatUnreadCount
		}
	}
	fam.FamilyTotalUnread = fam.FamilyChatUnreadCount + fam.FamilyLogUnreadCount
	return fam
}

// FamilyMembers original + siblings 去重后的成员列表。
func FamilyMembers(originalChildID string, siblings []string) []string {
	seen := map[string]bool{originalChildID: true}
	members := []string{originalChildID}
	for _, s := range siblings {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		members = append(members, s)
	}
	return members
}
