package bootstrap

import (
	"eduverse/pkg/config"
	"eduverse/pkg/logger"
)

// SetupLogger 初始化 Logger
// 从配置文件中读取日志系统相关配置：
// - filename: 日志文件路径
// - max_size: 每个日志文件保存的最大尺寸，单位：MB
// - max_backup: 日志文件最多保存多少个备份
// - max_age: 文件最多保存多少天
// - compress: 是否压缩归档的日志文件
// - type: 日志记录类型 可选：daily（按天）, single（单文件）
// - level: 日志级别，可选：debug, info, warn, error, fatal
func SetupLogger() {
	logger.InitLogger(
		config.GetString("log.filename"),
		config.GetInt("log.max_size"),
		config.GetInt("log.max_backup"),
		config.GetInt("log.max_age"),
		config.GetBool("log.compress"),
		config.GetString("log.type"),
		config.GetString("log.level"),
	)
}
