package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"NapChat/logger"
	"NapChat/module/push/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenResolver 解析链的端点侧切面。
type TokenResolver interface {
	Resolve(ctx context.Context, userID string) token.Tokens
	Invalidate(ctx context.Context, userID string)
}

// SyncedWriter 同步 token 的写入面。
type SyncedWriter interface {
	Upsert(ctx context.Context, userID, tok, app string) error
}

// LegacySender 诊断单 token 直发。
type LegacySender interface {
	SendViaLegacyProject(ctx context.Context, fcmToken, title, body string) error
}

type Server struct {
	Resolver TokenResolver
	Synced   SyncedWriter
	Sender   LegacySender

	// exploreFCMTokenStorage 的探测序列，按 project 选择。
	ProbesA []token.TokenProbe
	ProbesB []token.TokenProbe
}

type testPushReq struct {
	UserID   string `json:"userId"`
	FCMToken string `json:"fcmToken"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

type syncTokenReq struct {
	UserID   string `json:"userId"`
	FCMToken string `json:"fcmToken"`
	App      string `json:"app"` // appA / appB；缺省表示归属不明
}

// TestPushNotification POST {userId?, fcmToken?, title?, body?}
// 显式给 token 就直发；否则走解析链取一个（A 优先）。
func (s *Server) TestPushNotification(c *gin.Context) {
	var req testPushReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.UserID == "" && req.FCMToken == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId or fcmToken is required"})
		return
	}

	tok := req.FCMToken
	if tok == "" {
		resolved := s.Resolver.Resolve(c.Request.Context(), req.UserID)
		tok = resolved.AppA
		if tok == "" {
			tok = resolved.AppB
		}
	}
	if tok == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No token resolved for user", "fcmToken": ""})
		return
	}

	title := req.Title
	if title == "" {
		title = "Test notification"
	}
	body := req.Body
	if body == "" {
		body = "This is a test push"
	}

	if err := s.Sender.SendViaLegacyProject(c.Request.Context(), tok, title, body); err != nil {
		logger.Error("test push failed", zap.String("userId", req.UserID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error(), "fcmToken": tok})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Push sent", "fcmToken": tok})
}

// SyncFCMTokens POST {userId, fcmToken, app?}
// 落同步文档并打掉该用户的解析缓存。
func (s *Server) SyncFCMTokens(c *gin.Context) {
	var req syncTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.FCMToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and fcmToken are required"})
		return
	}
	if req.App == "" {
		logger.Warn("syncing token without owning app tag", zap.String("userId", req.UserID))
	}
	if err := s.Synced.Upsert(c.Request.Context(), req.UserID, req.FCMToken, req.App); err != nil {
		logger.Error("sync token failed", zap.String("userId", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	s.Resolver.Invalidate(c.Request.Context(), req.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token synced", "userId": req.UserID})
}

type exploreReq struct {
	Project string `json:"project" form:"project"`
	UserID  string `json:"userId" form:"userId"`
}

// ExploreFCMTokenStorage GET|POST {project, userId?}
// 诊断转储：对选中库的每个探测形态各跑一次，与 8s 定时器赛跑。
func (s *Server) ExploreFCMTokenStorage(c *gin.Context) {
	var req exploreReq
	if c.Request.Method == http.MethodGet {
		req.Project = c.Query("project")
		req.UserID = c.Query("userId")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var probes []token.TokenProbe
	switch req.Project {
	case "appA":
		probes = s.ProbesA
	case "appB":
		probes = s.ProbesB
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "project must be appA or appB"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 8*time.Second)
	defer cancel()

	type probeDump struct {
		Probe string `json:"probe"`
		Token string `json:"token,omitempty"`
		Error string `json:"error,omitempty"`
	}
	var mu sync.Mutex
	dump := make([]probeDump, 0, len(probes))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, p := range probes {
			d := probeDump{Probe: p.Name()}
			tok, err := p.TryResolve(ctx, req.UserID)
			if err != nil {
				d.Error = err.Error()
			} else {
				d.Token = tok
			}
			mu.Lock()
			dump = append(dump, d)
			mu.Unlock()
		}
	}()

	timedOut := false
	select {
	case <-done:
	case <-ctx.Done():
		timedOut = true
	}
	mu.Lock()
	snapshot := append([]probeDump{}, dump...)
	mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"project": req.Project, "probes": snapshot, "timedOut": timedOut})
}
