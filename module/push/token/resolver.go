package token

import (
	"context"
	"encoding/json"
	"time"

	"NapChat/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Tokens resolve(userId) 的结果：每应用至多一个投递句柄。
type Tokens struct {
	AppA string `json:"appA,omitempty"`
	AppB string `json:"appB,omitempty"`
}

func (t Tokens) Empty() bool { return t.AppA == "" && t.AppB == "" }

// SyncedSource 本地同步 token 的读取面；便于测试替换。
type SyncedSource interface {
	Get(ctx context.Context, userID string) (*SyncedToken, error)
}

// Resolver 解析链：每个应用按严格优先级跑自己库的探测序列，命中即止。
// 两边都落空才看本地同步 token。整条链绝不抛错，最坏返回空结构。
type Resolver struct {
	AppAProbes []TokenProbe
	AppBProbes []TokenProbe
	Synced     SyncedSource
	Cache      *redis.Client // 可空：缓存不可用时每次都走探测
	CacheTTL   time.Duration
}

const cacheKeyPrefix = "push:tokens:"

// Resolve 出错只记日志；每个探测的异常等价于“该形态没找到”。
func (r *Resolver) Resolve(ctx context.Context, userID string) Tokens {
	if cached, ok := r.fromCache(ctx, userID); ok {
		return cached
	}

	out := Tokens{
		AppA: runChain(ctx, userID, r.AppAProbes),
		AppB: runChain(ctx, userID, r.AppBProbes),
	}

	// 同步 token 兜底：仅在两个应用都没解析到时启用。
	// 归属应用未标记时挂到 appA —— 系统并不知道它属于哪个应用，
	// 这是存量数据的已知局限，这里只是让它可观测。
	if out.Empty() && r.Synced != nil {
		if doc, err := r.Synced.Get(ctx, userID); err != nil {
			logger.Warn("synced token lookup", zap.String("userId", userID), zap.Error(err))
		} else if doc != nil && doc.Token != "" {
			switch doc.App {
			case "appB":
				out.AppB = doc.Token
			case "appA":
				out.AppA = doc.Token
			default:
				logger.Warn("synced token has no owning app, defaulting to appA", zap.String("userId", userID))
				out.AppA = doc.Token
			}
		}
	}

	r.toCache(ctx, userID, out)
	return out
}

// Invalidate syncFCMTokens 更新后把缓存打掉。
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Del(ctx, cacheKeyPrefix+userID).Err(); err != nil {
		logger.Warn("token cache invalidate", zap.String("userId", userID), zap.Error(err))
	}
}

func runChain(ctx context.Context, userID string, probes []TokenProbe) string {
	for _, p := range probes {
		tok, err := p.TryResolve(ctx, userID)
		if err != nil {
			logger.Warn("token probe failed",
				zap.String("probe", p.Name()), zap.String("userId", userID), zap.Error(err))
			continue
		}
		if tok != "" {
			return tok
		}
	}
	return ""
}

func (r *Resolver) fromCache(ctx context.Context, userID string) (Tokens, bool) {
	if r.Cache == nil {
		return Tokens{}, false
	}
	raw, err := r.Cache.Get(ctx, cacheKeyPrefix+userID).Bytes()
	if err != nil {
		return Tokens{}, false
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, false
	}
	return t, true
}

func (r *Resolver) toCache(ctx context.Context, userID string, t Tokens) {
	if r.Cache == nil {
		return
	}
	ttl := r.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	b, _ := json.Marshal(t)
	if err := r.Cache.Set(ctx, cacheKeyPrefix+userID, b, ttl).Err(); err != nil {
		logger.Warn("token cache set", zap.String("userId", userID), zap.Error(err))
	}
}
