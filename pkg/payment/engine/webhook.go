package engine

import (
	"context"
	"encoding/json"
	"errors"

	"eduverse/app/models/payment"
	"eduverse/pkg/logger"
	"eduverse/pkg/payment/signature"
	"eduverse/pkg/payment/types"
)

// webhookEvent 网关 Webhook 事件载荷
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity types.GatewayPayment `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// HandleWebhook 处理网关 Webhook 通知
//
// 签名基于请求体原始字节校验，失败返回 ErrSignatureInvalid，且不做任何状态变更。
// 签名通过后，未知订单、未知事件类型、载荷解析失败一律记录日志后丢弃并返回 nil，
// 发送方始终收到成功响应，避免重试风暴，也避免向探测者泄露校验逻辑。
// Webhook 绝不创建支付记录。
func (e *Engine) HandleWebhook(ctx context.Context, rawBody []byte, sig string) error {
	if err := signature.VerifyWebhook(rawBody, sig, e.webhookKey); err != nil {
		return err
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		logger.WarnString("支付对账", "Webhook", "载荷解析失败，丢弃: "+err.Error())
		return nil
	}

	switch event.Event {
	case types.EventPaymentCaptured:
		return e.applyCaptured(ctx, &event.Payload.Payment.Entity)
	case types.EventPaymentFailed:
		return e.applyFailed(ctx, &event.Payload.Payment.Entity)
	case types.EventOrderPaid:
		orderNo := event.Payload.Order.Entity.ID
		if orderNo == "" {
			orderNo = event.Payload.Payment.Entity.OrderID
		}
		return e.applyOrderPaid(ctx, orderNo)
	default:
		logger.DebugString("支付对账", "Webhook", "未识别的事件类型，丢弃: "+event.Event)
		return nil
	}
}

// applyCaptured 处理 payment.captured 事件
// 重复投递同一事件是成功的空操作；已退款/已取消的记录不被回退
func (e *Engine) applyCaptured(ctx context.Context, gwPayment *types.GatewayPayment) error {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		rec, err := e.repo.GetByOrderNo(ctx, gwPayment.OrderID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				logger.WarnString("支付对账", "Webhook", "payment.captured 订单不存在，丢弃: "+gwPayment.OrderID)
				return nil
			}
			return err
		}

		if rec.Status == payment.StatusRefunded || rec.Status == payment.StatusCancelled {
			logger.WarnString("支付对账", "Webhook", "payment.captured 到达时记录已退款/取消，忽略: "+rec.OrderNo)
			return nil
		}

		before := *rec
		e.applyTransactionID(rec, gwPayment.ID)
		e.mergeGatewayMeta(rec, gwPayment)
		rec.Status = payment.StatusCompleted

		// 完全重复的投递不产生写入
		if before.Status == rec.Status &&
			before.TransactionID == rec.TransactionID &&
			before.GatewayMeta == rec.GatewayMeta &&
			before.PaymentMethod == rec.PaymentMethod {
			return nil
		}

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			continue
		}
		return err
	}
	return types.ErrConcurrentModification
}

// applyFailed 处理 payment.failed 事件
// 终态记录保持不变，备注设置为网关提供的失败描述
func (e *Engine) applyFailed(ctx context.Context, gwPayment *types.GatewayPayment) error {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		rec, err := e.repo.GetByOrderNo(ctx, gwPayment.OrderID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				logger.WarnString("支付对账", "Webhook", "payment.failed 订单不存在，丢弃: "+gwPayment.OrderID)
				return nil
			}
			return err
		}

		if rec.Status.IsTerminal() {
			return nil
		}
		if rec.Status == payment.StatusFailed && rec.TransactionID == gwPayment.ID {
			return nil
		}

		e.applyTransactionID(rec, gwPayment.ID)
		rec.Status = payment.StatusFailed
		if gwPayment.ErrorDescription != "" {
			rec.Notes = gwPayment.ErrorDescription
		}

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			continue
		}
		return err
	}
	return types.ErrConcurrentModification
}

// applyOrderPaid 处理 order.paid 事件
// 仅推进状态，不携带交易号；已完成时为空操作
func (e *Engine) applyOrderPaid(ctx context.Context, orderNo string) error {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		rec, err := e.repo.GetByOrderNo(ctx, orderNo)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				logger.WarnString("支付对账", "Webhook", "order.paid 订单不存在，丢弃: "+orderNo)
				return nil
			}
			return err
		}

		if rec.Status.IsTerminal() {
			return nil
		}

		rec.Status = payment.StatusCompleted

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			continue
		}
		return err
	}
	return types.ErrConcurrentModification
}
