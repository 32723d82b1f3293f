// Package types 定义支付核心的接口与数据结构
package types

import (
	"context"
	"errors"

	"eduverse/app/models/payment"
)

// Webhook 事件类型
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// 错误分类
// 各层统一使用这组哨兵错误，调用方通过 errors.Is 判断
var (
	// ErrNotFound 支付记录不存在
	ErrNotFound = errors.New("payment: record not found")
	// ErrDuplicateOrderNo 订单号冲突，正常流程不应出现，视为完整性错误
	ErrDuplicateOrderNo = errors.New("payment: duplicate order no")
	// ErrConcurrentModification 乐观锁版本冲突，调用方需重新读取后重试
	ErrConcurrentModification = errors.New("payment: concurrent modification")
	// ErrSignatureInvalid 签名校验失败
	ErrSignatureInvalid = errors.New("payment: signature invalid")
	// ErrGatewayUnavailable 网关网络不可达或超时
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	// ErrGatewayRejected 网关明确拒绝了请求
	ErrGatewayRejected = errors.New("payment: gateway rejected")
	// ErrNotRefundable 记录不处于可退款状态
	ErrNotRefundable = errors.New("payment: record not refundable")
	// ErrAlreadyRefunded 已退款，不允许二次退款
	ErrAlreadyRefunded = errors.New("payment: already refunded")
	// ErrRefundExceedsAmount 退款金额超过原始支付金额
	ErrRefundExceedsAmount = errors.New("payment: refund exceeds original amount")
)

// GatewayOrder 网关侧订单
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// GatewayPayment 网关侧支付流水
type GatewayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"` // created / authorized / captured / refunded / failed
	Method           string `json:"method"`
	Bank             string `json:"bank"`
	Wallet           string `json:"wallet"`
	Contact          string `json:"contact"`
	Email            string `json:"email"`
	ErrorDescription string `json:"error_description"`
}

// Captured 网关是否已捕获该笔支付
func (p *GatewayPayment) Captured() bool {
	return p.Status == "captured"
}

// GatewayRefund 网关侧退款凭据
type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Gateway 支付网关客户端接口
// 适配器只做一次调用、不做重试，重试策略属于调用方
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	IssueRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*GatewayRefund, error)
}

// Repository 支付记录仓储接口
// Save 必须携带乐观锁校验，版本不一致时返回 ErrConcurrentModification
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	Save(ctx context.Context, p *payment.Payment) error
	GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error)
}

// CreateOrderParams 创建订单参数
type CreateOrderParams struct {
	UserID   string
	Amount   int64
	Currency string
	Items    payment.Items
	Notes    map[string]string
}

// VerifyParams 客户端支付确认参数
type VerifyParams struct {
	OrderNo   string
	PaymentID string
	Signature string
}

// Service 支付核心对外暴露的操作集合
type Service interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (*payment.Payment, error)
	VerifyPayment(ctx context.Context, params VerifyParams) (*payment.Payment, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
	Refund(ctx context.Context, orderNo string, amount int64, reason string) (*payment.Payment, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error)
}
