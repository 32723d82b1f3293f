// Package config 站点配置信息
package config

// Initialize 触发加载本目录下的所有配置
// 各配置文件通过 init() 注册到 pkg/config 中，
// 这里只需要被 main 包引用，保证 init 执行
func Initialize() {
}
