package model

// 集合名
const (
	CounterColl = "unread_counters"
	FamilyColl  = "family_unread_counters"
	MessageColl = "messages"
)

// UnreadCounter 每个 (userId, childId) 一份，_id = user_{userId}_child_{childId}。
// 不变式：TotalUnreadCount == ChatUnreadCount + LogUnreadCount，
// LogUnreadCount == sum(LogUnreadByLogID)。只增不删。
type UnreadCounter struct {
	ID               string           `bson:"_id" json:"-"`
	UserID           string           `bson:"user_id" json:"userId"`
	ChildID          string           `bson:"child_id" json:"childId"`
	ChatUnreadCount  int64            `bson:"chat_unread_count" json:"chatUnreadCount"`
	LogUnreadCount   int64            `bson:"log_unread_count" json:"logUnreadCount"`
	LogUnreadByLogID map[string]int64 `bson:"log_unread_by_log_id" json:"logUnreadByLogId"`
	TotalUnreadCount int64            `bson:"total_unread_count" json:"totalUnreadCount"`
	LastUpdated      int64            `bson:"last_updated" json:"timestamp"` // Unix ms
}

// FamilyUnreadCounter 兄弟姐妹共享聊天线、日志线各自独立时的聚合视图。
// _id = user_{userId}_family_{originalChildId}；每次底层计数变化整体重算，不做增量。
type FamilyUnreadCounter struct {
	ID                    string `bson:"_id" json:"-"`
	UserID                string `bson:"user_id" json:"userId"`
	OriginalChildID       string `bson:"original_child_id" json:"originalChildId"`
	FamilyChatUnreadCount int64  `bson:"family_chat_unread_count" json:"familyChatUnreadCount"`
	FamilyLogUnreadCount  int64  `bson:"family_log_unread_count" json:"familyLogUnreadCount"`
	FamilyTotalUnread     int64  `bson:"family_total_unread_count" json:"familyTotalUnreadCount"`
	LastUpdated           int64  `bson:"last_updated" json:"timestamp"`
}

// Message 聊天消息或日志评论（LogID 非空即日志评论）。
// Text/ImageRef/AudioRef 三者仅一个有意义。
// ReadBy 在创建时对每个收件人置 false，只有已读端点会翻成 true。
type Message struct {
	ID             string          `bson:"_id" json:"messageId"`
	SenderID       string          `bson:"sender_id" json:"senderId"`
	ConversationID string          `bson:"conversation_id" json:"conversationId"`
	ChildID        string          `bson:"child_id" json:"childId"`
	LogID          string          `bson:"log_id,omitempty" json:"logId,omitempty"`
	Text           string          `bson:"text,omitempty" json:"text,omitempty"`
	ImageRef       string          `bson:"image_ref,omitempty" json:"imageRef,omitempty"`
	AudioRef       string          `bson:"audio_ref,omitempty" json:"audioRef,omitempty"`
	ReadBy         map[string]bool `bson:"read_by" json:"readBy"`
	CreatedAtMS    int64           `bson:"created_at_ms" json:"createdAtMs"`

	// 家庭上下文（可选）：兄弟姐妹共享聊天线时由写入方带上。
	OriginalChildID string   `bson:"original_child_id,omitempty" json:"originalChildId,omitempty"`
	Siblings        []string `bson:"siblings,omitempty" json:"siblings,omitempty"`
}

func (m *Message) IsLogComment() bool { return m.LogID != "" }
