package middlewares

import (
	"crypto/subtle"

	"eduverse/pkg/config"
	"eduverse/pkg/logger"
	"eduverse/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminKey 后台管理接口守卫，校验 X-Admin-Key 请求头
// 退款等敏感操作仅允许运营后台调用
func AdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := config.GetString("app.admin_key")
		if expected == "" {
			logger.ErrorString("中间件", "AdminKey", "app.admin_key 未配置，拒绝所有后台请求")
			response.Abort401(c)
			return
		}

		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			logger.WarnString("中间件", "AdminKey", "后台密钥校验失败，IP: "+c.ClientIP())
			response.Abort401(c)
			return
		}

		c.Next()
	}
}
