package migrations

import (
	"eduverse/app/models/payment"
)

// RegisterTables 返回需要迁移的表的模型列表
// 支付记录永久保留，不注册任何删除迁移
func RegisterTables() []interface{} {
	return []interface{}{
		&payment.Payment{},
	}
}
