package routes

import (
	"eduverse/app/http/controllers/api/v1/payments"
	"eduverse/app/http/middlewares"
	"eduverse/app/repositories"
	"eduverse/pkg/config"
	"eduverse/pkg/payment/engine"
	"eduverse/pkg/payment/razorpay"

	"github.com/gin-gonic/gin"
)

// 路由限流配置
const (
	// 🌍 全局限流：每小时每IP 30000 请求
	GlobalRateLimit = "30000-H"
	// 💳 创建订单限流：每小时每IP 100 请求
	CreateOrderLimit = "100-H"
	// ✅ 支付确认限流：每分钟每IP 60 请求
	VerifyLimit = "60-M"
	// 🔍 订单查询限流：每分钟每IP 300 请求
	QueryOrderLimit = "300-M"
)

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine) {
	// 组装支付核心：网关客户端 + 数据库仓储 + 引擎
	gateway := razorpay.NewClientFromConfig()
	repo := repositories.NewPaymentRepository()
	svc := engine.New(gateway, repo, engine.Options{
		KeySecret:  config.GetString("gateway.key_secret"),
		WebhookKey: config.GetString("gateway.webhook_secret"),
	})

	v1 := r.Group("/v1")

	v1.Use(
		middlewares.Recovery(),
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(GlobalRateLimit),
		middlewares.Cors(),
	)

	// 💳 支付订单相关路由
	paymentRoutes := v1.Group("/payments")
	{
		pc := payments.NewPaymentsController(svc, gateway.KeyID())

		// 📝 创建支付订单
		// POST /v1/payments/orders
		paymentRoutes.POST("/orders",
			middlewares.LimitIP(CreateOrderLimit),
			pc.Store,
		)

		// ✅ 客户端支付确认
		// POST /v1/payments/verify
		paymentRoutes.POST("/verify",
			middlewares.LimitIP(VerifyLimit),
			pc.Verify,
		)

		// 🔍 查询订单
		// GET /v1/payments/orders/:order_no
		paymentRoutes.GET("/orders/:order_no",
			middlewares.LimitIP(QueryOrderLimit),
			pc.Show,
		)

		// 💸 后台退款，需要 X-Admin-Key
		// PUT /v1/payments/orders/:order_no/refund
		paymentRoutes.PUT("/orders/:order_no/refund",
			middlewares.AdminKey(),
			pc.Refund,
		)
	}

	// 📡 网关 Webhook 回调，不走全局限流之外的额外限制
	// POST /v1/webhooks/razorpay
	wc := payments.NewWebhookController(svc)
	v1.POST("/webhooks/razorpay", wc.Handle)
}
