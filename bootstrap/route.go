package bootstrap

import (
	"net/http"
	"strings"

	"eduverse/app/http/middlewares"
	"eduverse/routes"

	"github.com/gin-gonic/gin"
)

// SetupRoute 路由初始化
// 1. 注册全局中间件
// 2. 注册 API 路由
// 3. 配置 404 处理器
func SetupRoute(router *gin.Engine) {
	// 注册全局中间件
	registerGlobalMiddleWare(router)

	// 注册 API 路由
	// 具体路由定义在 routes 包中
	routes.RegisterAPIRoutes(router)

	// 配置 404 路由处理器
	setup404Handler(router)
}

// registerGlobalMiddleWare 注册全局中间件
// - Logger 中间件：记录请求日志
// - Recovery 中间件：从 panic 中恢复
func registerGlobalMiddleWare(router *gin.Engine) {
	router.Use(
		middlewares.Logger(),
		middlewares.Recovery(),
	)
}

// setup404Handler 配置 404 请求处理器
// 根据请求的 Accept 头来返回不同格式的 404 响应
func setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		acceptString := c.Request.Header.Get("Accept")

		if strings.Contains(acceptString, "text/html") {
			c.String(http.StatusNotFound, "页面返回 404")
		} else {
			c.JSON(http.StatusNotFound, gin.H{
				"error_code":    404,
				"error_message": "路由未定义，请确认 url 和请求方法是否正确。",
			})
		}
	})
}
