package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"NapChat/logger"
	"NapChat/module/unread/model"
	"NapChat/service/natsx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Counters 端点需要的计数面；测试时用假实现替换。
type Counters interface {
	GetCounter(ctx context.Context, userID, childID string) (*model.UnreadCounter, error)
	MarkChatRead(ctx context.Context, userID, childID, conversationID string) (int64, error)
	MarkLogRead(ctx context.Context, userID, childID, logID string) (int64, error)
	MarkAllLogsRead(ctx context.Context, userID, childID string) (int64, error)
	RecomputeFamily(ctx context.Context, userID, originalChildID string, siblings []string) (*model.FamilyUnreadCounter, error)
}

type Server struct {
	Counters Counters
}

func NewServer(c Counters) *Server { return &Server{Counters: c} }

// ---- 请求/响应结构（边界处显式校验，不把松散 map 带进核心） ----

type countersReq struct {
	UserID  string `json:"userId" form:"userId"`
	ChildID string `json:"childId" form:"childId"`
}

type familyReq struct {
	UserID          string   `json:"userId" form:"userId"`
	OriginalChildID string   `json:"originalChildId" form:"originalChildId"`
	Siblings        []string `json:"siblings" form:"siblings"`
}

type markChatReq struct {
	UserID          string   `json:"userId"`
	ChildID         string   `json:"childId"`
	ConversationID  string   `json:"conversationId"`
	OriginalChildID string   `json:"originalChildId"`
	Siblings        []string `json:"siblings"`
}

type markLogReq struct {
	UserID          string   `json:"userId"`
	ChildID         string   `json:"childId"`
	LogID           string   `json:"logId"`
	OriginalChildID string   `json:"originalChildId"`
	Siblings        []string `json:"siblings"`
}

type markAllReq struct {
	UserID          string   `json:"userId"`
	ChildID         string   `json:"childId"`
	OriginalChildID string   `json:"originalChildId"`
	Siblings        []string `json:"siblings"`
}

type markResp struct {
	Success        bool   `json:"success"`
	MessagesMarked int64  `json:"messagesMarkedRead"`
	Message        string `json:"message"`
}

// bind GET 走 query（siblings 逗号分隔），POST 走 JSON。
func bind(c *gin.Context, out any) error {
	if c.Request.Method == http.MethodGet {
		return c.ShouldBindQuery(out)
	}
	return c.ShouldBindJSON(out)
}

func splitSiblings(c *gin.Context, siblings []string) []string {
	if len(siblings) == 1 && strings.Contains(siblings[0], ",") {
		return strings.Split(siblings[0], ",")
	}
	if len(siblings) == 0 && c.Request.Method == http.MethodGet {
		if raw := c.Query("siblings"); raw != "" {
			return strings.Split(raw, ",")
		}
	}
	return siblings
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func internalError(c *gin.Context, err error) {
	logger.Error("unread endpoint failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// GetUnreadCounters GET|POST {userId, childId}
func (s *Server) GetUnreadCounters(c *gin.Context) {
	var req countersReq
	if err := bind(c, &req); err != nil || req.UserID == "" || req.ChildID == "" {
		badRequest(c, "userId and childId are required")
		return
	}
	counter, err := s.Counters.GetCounter(c.Request.Context(), req.UserID, req.ChildID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chatUnreadCount":  counter.ChatUnreadCount,
		"logUnreadCount":   counter.LogUnreadCount,
		"logUnreadByLogId": counter.LogUnreadByLogID,
		"totalUnreadCount": counter.TotalUnreadCount,
		"timestamp":        counter.LastUpdated,
	})
}

// GetFamilyUnreadCounters GET|POST {userId, originalChildId, siblings?}
func (s *Server) GetFamilyUnreadCounters(c *gin.Context) {
	var req familyReq
	if err := bind(c, &req); err != nil || req.UserID == "" || req.OriginalChildID == "" {
		badRequest(c, "userId and originalChildId are required")
		return
	}
	fam, err := s.Counters.RecomputeFamily(c.Request.Context(), req.UserID, req.OriginalChildID, splitSiblings(c, req.Siblings))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"familyChatUnreadCount":  fam.FamilyChatUnreadCount,
		"familyLogUnreadCount":   fam.FamilyLogUnreadCount,
		"familyTotalUnreadCount": fam.FamilyTotalUnread,
		"timestamp":              fam.LastUpdated,
	})
}

// MarkChatAsRead POST {userId, childId, conversationId, originalChildId?, siblings?}
// 结构性幂等：计数已为零时整个操作是 no-op。
func (s *Server) MarkChatAsRead(c *gin.Context) {
	var req markChatReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.ChildID == "" || req.ConversationID == "" {
		badRequest(c, "userId, childId and conversationId are required")
		return
	}
	n, err := s.Counters.MarkChatRead(c.Request.Context(), req.UserID, req.ChildID, req.ConversationID)
	if err != nil {
		internalError(c, err)
		return
	}
	s.afterMutation(c.Request.Context(), req.UserID, req.ChildID, req.OriginalChildID, req.Siblings)
	c.JSON(http.StatusOK, markResp{Success: true, MessagesMarked: n, Message: "Chat marked as read"})
}

// MarkLogAsRead POST {userId, childId, logId, ...}
func (s *Server) MarkLogAsRead(c *gin.Context) {
	var req markLogReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.ChildID == "" || req.LogID == "" {
		badRequest(c, "userId, childId and logId are required")
		return
	}
	n, err := s.Counters.MarkLogRead(c.Request.Context(), req.UserID, req.ChildID, req.LogID)
	if err != nil {
		internalError(c, err)
		return
	}
	s.afterMutation(c.Request.Context(), req.UserID, req.ChildID, req.OriginalChildID, req.Siblings)
	c.JSON(http.StatusOK, markResp{Success: true, MessagesMarked: n, Message: "Log marked as read"})
}

// MarkAllLogsAsRead POST {userId, childId, ...}
func (s *Server) MarkAllLogsAsRead(c *gin.Context) {
	var req markAllReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.ChildID == "" {
		badRequest(c, "userId and childId are required")
		return
	}
	n, err := s.Counters.MarkAllLogsRead(c.Request.Context(), req.UserID, req.ChildID)
	if err != nil {
		internalError(c, err)
		return
	}
	s.afterMutation(c.Request.Context(), req.UserID, req.ChildID, req.OriginalChildID, req.Siblings)
	c.JSON(http.StatusOK, markResp{Success: true, MessagesMarked: n, Message: "All logs marked as read"})
}

// afterMutation 个人计数动完后：家庭聚合重算（无上下文按单成员家庭），
// 再发一条角标刷新事件。两步都尽力而为。
func (s *Server) afterMutation(ctx context.Context, userID, childID, originalChildID string, siblings []string) {
	if originalChildID == "" {
		originalChildID = childID
		siblings = nil
	}
	if _, err := s.Counters.RecomputeFamily(ctx, userID, originalChildID, siblings); err != nil {
		logger.Error("family recompute after mutation", zap.String("userId", userID), zap.Error(err))
	}
	counter, err := s.Counters.GetCounter(ctx, userID, childID)
	if err != nil || counter == nil {
		return
	}
	natsx.PublishCounterUpdate(natsx.CounterUpdate{
		UserID:      userID,
		ChildID:     childID,
		ChatUnread:  counter.ChatUnreadCount,
		LogUnread:   counter.LogUnreadCount,
		TotalUnread: counter.TotalUnreadCount,
		UpdatedAtMS: time.Now().UnixMilli(),
	})
}
