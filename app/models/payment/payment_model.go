// Package payment 支付记录模型
package payment

import (
	"time"

	"eduverse/app/models"
)

// Payment 支付记录模型
// 每个网关订单对应且仅对应一条记录，财务数据永久保留，不做软删除
type Payment struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string `gorm:"type:varchar(64);uniqueIndex" json:"order_no"`  // 网关订单号，创建后不可变
	TransactionID string `gorm:"type:varchar(64);uniqueIndex:uk_payments_transaction_id,where:transaction_id <> ''" json:"transaction_id"` // 网关交易号，确认后才有值
	UserID        string `gorm:"type:varchar(36);index" json:"user_id"`
	Amount        int64  `gorm:"not null" json:"amount"`                    // 金额，最小货币单位（INR 为派萨）
	Currency      string `gorm:"type:varchar(8)" json:"currency"`           // ISO 货币代码
	Status        Status `gorm:"type:varchar(20);index" json:"status"`      // 状态机见 pkg/payment/engine
	PaymentMethod string `gorm:"type:varchar(32)" json:"payment_method"`    // 支付方式，网关上报，仅作展示
	Items         Items  `gorm:"type:json" json:"items"`                    // 订单行项目，创建后不可变

	GatewayMeta GatewayMeta `gorm:"type:json" json:"gateway_meta"` // 网关侧补充信息，合并更新
	Notes       string      `gorm:"type:text" json:"notes"`        // 自由文本备注，后写覆盖

	// 退款字段，仅由退款流程写入一次，status == refunded 时必定非空
	RefundAmount int64      `gorm:"default:0" json:"refund_amount"`
	RefundReason string     `gorm:"type:text" json:"refund_reason"`
	RefundedAt   *time.Time `json:"refunded_at"`

	// 乐观锁版本号，Save 时校验
	LockVersion uint64 `gorm:"not null;default:0" json:"-"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
