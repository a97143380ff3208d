package mongoutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// 主库 20、遗留库 10（见 main.go）；散装配置没给时的兜底值。
const (
	defaultMaxPoolSize = 20
	defaultMaxRetry    = 3
)

// buildMongoURI env 通常直接给完整 URI；这里兜散装字段（host 列表 + 可选认证）。
// 没配用户名/密码就不写凭据段，authSource 缺省回落到目标库名。
func buildMongoURI(cfg *Config) string {
	authSource := cfg.AuthSource
	if authSource == "" {
		authSource = cfg.Database
	}

	var b strings.Builder
	b.WriteString("mongodb://")
	if cfg.Username != "" && cfg.Password != "" {
		fmt.Fprintf(&b, "%s:%s@", cfg.Username, cfg.Password)
	}
	b.WriteString(strings.Join(cfg.Address, ","))
	fmt.Fprintf(&b, "/%s?authSource=%s&maxPoolSize=%d", cfg.Database, authSource, cfg.MaxPoolSize)
	return b.String()
}

// shouldRetry 连接期重试判定：ctx 已取消不再试；
// 认证类命令错误（13 unauthorized / 18 auth failed）重试也不会变好。
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code != 13 && cmdErr.Code != 18
	}
	return true
}
