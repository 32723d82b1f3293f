// Package engine 支付对账引擎
//
// 状态机的唯一实现。客户端确认、网关 Webhook、管理员退款是三个相互独立、
// 到达顺序不确定的触发源，可能并发作用于同一条支付记录。因此：
//   - 所有转移都表达为"设置为 X"，进入已处于的终态是成功的空操作
//   - 每一次 读取-决策-写入 都在乐观锁重试循环里执行，版本冲突即重读重试
//   - pending 是唯一初始态，completed / refunded / cancelled 对网关触发源是终态
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"eduverse/app/models/payment"
	"eduverse/pkg/logger"
	"eduverse/pkg/payment/signature"
	"eduverse/pkg/payment/types"
)

// DefaultMaxRetries 乐观锁冲突时整个操作的最大重试次数
const DefaultMaxRetries = 3

// Engine 支付对账引擎
type Engine struct {
	gateway    types.Gateway
	repo       types.Repository
	keySecret  string // 客户端确认签名密钥
	webhookKey string // Webhook 签名密钥
	maxRetries int
}

// Options 引擎配置
type Options struct {
	KeySecret  string
	WebhookKey string
	MaxRetries int
}

// New 创建支付对账引擎
// 网关适配器显式注入，便于替换为测试替身
func New(gateway types.Gateway, repo types.Repository, opts Options) *Engine {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Engine{
		gateway:    gateway,
		repo:       repo,
		keySecret:  opts.KeySecret,
		webhookKey: opts.WebhookKey,
		maxRetries: opts.MaxRetries,
	}
}

// CreateOrder 创建支付订单
// 先调用网关，成功后才落库为 pending；网关调用失败或超时不会留下任何记录
func (e *Engine) CreateOrder(ctx context.Context, params types.CreateOrderParams) (*payment.Payment, error) {
	rec := &payment.Payment{
		UserID:   params.UserID,
		Amount:   params.Amount,
		Currency: params.Currency,
		Status:   payment.StatusPending,
		Items:    params.Items,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	receipt := "rcpt_" + uuid.NewString()
	gwOrder, err := e.gateway.CreateOrder(ctx, params.Amount, params.Currency, receipt, params.Notes)
	if err != nil {
		return nil, fmt.Errorf("订单创建失败: %w", err)
	}

	rec.OrderNo = gwOrder.ID
	if err := e.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, types.ErrDuplicateOrderNo) {
			// 网关保证订单号全局唯一，撞号说明数据完整性已被破坏
			logger.ErrorString("支付对账", "创建订单", "订单号冲突，完整性错误: "+gwOrder.ID)
		}
		return nil, err
	}
	return rec, nil
}

// GetByOrderNo 查询支付记录
func (e *Engine) GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	return e.repo.GetByOrderNo(ctx, orderNo)
}

// VerifyPayment 处理客户端提交的支付确认
//
// 签名不通过：记录转入 failed（不清除已有交易号，追加失败备注），返回 ErrSignatureInvalid；
// 已处于终态的记录不被降级，仅返回错误。
// 签名通过：向网关查询该笔支付，已捕获转入 completed，未捕获转入 processing。
// Webhook 可能先一步完成了该记录，此时本操作是成功的空操作。
func (e *Engine) VerifyPayment(ctx context.Context, params types.VerifyParams) (*payment.Payment, error) {
	if err := signature.VerifyPayment(params.OrderNo, params.PaymentID, params.Signature, e.keySecret); err != nil {
		if markErr := e.markVerificationFailed(ctx, params.OrderNo); markErr != nil && !errors.Is(markErr, types.ErrNotFound) {
			logger.ErrorString("支付对账", "确认失败标记", markErr.Error())
		}
		return nil, err
	}

	gwPayment, err := e.gateway.FetchPayment(ctx, params.PaymentID)
	if err != nil {
		// 网关不可达时不推进任何状态，调用方可重试确认操作
		return nil, err
	}

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		rec, err := e.repo.GetByOrderNo(ctx, params.OrderNo)
		if err != nil {
			return nil, err
		}

		// Webhook 先到达并完成（或记录已退款/取消）时为空操作
		if rec.Status.IsTerminal() {
			return rec, nil
		}
		// 状态机前置条件：pending 或 processing 才能由确认路径推进
		if rec.Status != payment.StatusPending && rec.Status != payment.StatusProcessing {
			return rec, nil
		}

		e.applyTransactionID(rec, params.PaymentID)
		e.mergeGatewayMeta(rec, gwPayment)
		if gwPayment.Captured() {
			rec.Status = payment.StatusCompleted
		} else {
			rec.Status = payment.StatusProcessing
		}

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, types.ErrConcurrentModification
}

// markVerificationFailed 签名校验失败时将记录转入 failed
// 终态记录保持不变（不可从终态回退），交易号永不清除
func (e *Engine) markVerificationFailed(ctx context.Context, orderNo string) error {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		rec, err := e.repo.GetByOrderNo(ctx, orderNo)
		if err != nil {
			return err
		}
		if rec.Status.IsTerminal() {
			logger.WarnString("支付对账", "确认签名失败", "记录已处于终态，保持不变: "+orderNo)
			return nil
		}

		rec.Status = payment.StatusFailed
		rec.AppendNote("客户端确认签名校验失败")

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			continue
		}
		return err
	}
	return types.ErrConcurrentModification
}

// applyTransactionID 设置交易号
// 同一订单出现不同交易号时以后到的（通常为 Webhook）为准，
// 旧交易号保留在 gateway_meta 里供人工核查
func (e *Engine) applyTransactionID(rec *payment.Payment, transactionID string) {
	if transactionID == "" || rec.TransactionID == transactionID {
		return
	}
	if rec.TransactionID != "" {
		logger.WarnString("支付对账", "交易号冲突",
			fmt.Sprintf("订单 %s 的交易号 %s 被 %s 覆盖", rec.OrderNo, rec.TransactionID, transactionID))
		rec.GatewayMeta.PriorTransactionID = rec.TransactionID
	}
	rec.TransactionID = transactionID
}

// mergeGatewayMeta 将网关上报的支付方式信息合并进记录，合并而非替换
func (e *Engine) mergeGatewayMeta(rec *payment.Payment, p *types.GatewayPayment) {
	rec.GatewayMeta.Merge(payment.GatewayMeta{
		Method:  p.Method,
		Bank:    p.Bank,
		Wallet:  p.Wallet,
		Contact: p.Contact,
		Email:   p.Email,
	})
	if p.Method != "" {
		rec.PaymentMethod = p.Method
	}
}
