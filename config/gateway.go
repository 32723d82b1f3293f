package config

import (
	"eduverse/pkg/config"
)

func init() {
	config.Add("gateway", func() map[string]interface{} {
		return map[string]interface{}{
			// 网关 API 地址
			"base_url": config.Env("GATEWAY_BASE_URL", "https://api.razorpay.com"),

			// Key ID 是公开的，会下发给客户端拉起收银台
			"key_id": config.Env("GATEWAY_KEY_ID", ""),

			// Key Secret 用于 API 鉴权和客户端签名校验，永远不出服务端
			"key_secret": config.Env("GATEWAY_KEY_SECRET", ""),

			// Webhook 验签使用独立的密钥
			"webhook_secret": config.Env("GATEWAY_WEBHOOK_SECRET", ""),

			// 请求超时，单位：秒
			"timeout": config.Env("GATEWAY_TIMEOUT", 10),
		}
	})
}
