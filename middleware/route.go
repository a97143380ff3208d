package middleware

import (
	"github.com/gin-gonic/gin"
)

// RouteOpt 配置选项
type RouteOpt struct {
	AllowGet bool // 部分查询端点兼容 GET/POST 两种调用
}

// POST 封装注册
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, handler)
	if opt.AllowGet {
		r.GET(path, handler)
	}
}

// GET 封装注册
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, _ RouteOpt) {
	r.GET(path, handler)
}
