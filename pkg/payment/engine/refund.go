package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eduverse/app/models/payment"
	"eduverse/pkg/logger"
	"eduverse/pkg/payment/types"
)

// Refund 对已完成的支付发起退款
//
// 前置条件按顺序检查，第一个失败即返回：
//  1. 记录存在
//  2. 状态为 completed
//  3. 退款字段尚未写入（禁止二次退款）
//  4. 退款金额不超过原始支付金额
//
// 通过后先调用网关发起退款，网关确认成功才写入退款字段并转入 refunded；
// 网关调用失败或超时时记录保持原样，错误原样上抛。
func (e *Engine) Refund(ctx context.Context, orderNo string, amount int64, reason string) (*payment.Payment, error) {
	rec, err := e.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if err := checkRefundable(rec, amount); err != nil {
		return nil, err
	}

	_, err = e.gateway.IssueRefund(ctx, rec.TransactionID, amount, map[string]string{
		"reason":   reason,
		"order_no": rec.OrderNo,
	})
	if err != nil {
		return nil, fmt.Errorf("退款发起失败: %w", err)
	}

	// 网关已确认，后续只负责把结果写入记录；版本冲突时重读重写，绝不重复调用网关
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if err := checkRefundable(rec, amount); err != nil {
			// 网关调用期间另一个触发源改变了记录，退款已在网关侧生效，
			// 记录落盘失败属于需要人工介入的异常
			logger.ErrorString("支付对账", "退款",
				fmt.Sprintf("网关退款成功但记录状态已变化，订单 %s: %v", orderNo, err))
			return nil, err
		}

		now := time.Now()
		rec.RefundAmount = amount
		rec.RefundReason = reason
		rec.RefundedAt = &now
		rec.Status = payment.StatusRefunded

		err = e.repo.Save(ctx, rec)
		if errors.Is(err, types.ErrConcurrentModification) {
			rec, err = e.repo.GetByOrderNo(ctx, orderNo)
			if err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, types.ErrConcurrentModification
}

// checkRefundable 退款前置条件，按顺序检查，第一个失败即返回
func checkRefundable(rec *payment.Payment, amount int64) error {
	if !rec.IsCompleted() {
		return types.ErrNotRefundable
	}
	if rec.HasRefund() {
		return types.ErrAlreadyRefunded
	}
	if amount <= 0 || amount > rec.Amount {
		return types.ErrRefundExceedsAmount
	}
	return nil
}
