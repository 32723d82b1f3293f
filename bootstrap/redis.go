package bootstrap

import (
	"fmt"

	"eduverse/pkg/config"
	"eduverse/pkg/redis"
)

// SetupRedis 初始化 Redis
// Webhook 事件去重依赖 Redis 的 SETNX
func SetupRedis() {
	redis.ConnectRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
	)
}
