package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Origin 全开 CORS：嵌在第三方 no-code 容器里的前端域名不可枚举。
// OPTIONS 预检直接 204 短路。
func Origin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
