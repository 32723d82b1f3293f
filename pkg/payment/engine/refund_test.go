package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduverse/app/models/payment"
	"eduverse/pkg/payment/engine"
	"eduverse/pkg/payment/memory"
	"eduverse/pkg/payment/types"
)

// completedPayment 构造一条已完成的支付记录
func completedPayment(t *testing.T, gw *fakeGateway, eng *engine.Engine) *payment.Payment {
	t.Helper()

	rec, err := eng.CreateOrder(context.Background(), membershipOrder())
	require.NoError(t, err)

	gw.addPayment(&types.GatewayPayment{ID: "pay_R1", OrderID: rec.OrderNo, Status: "captured", Method: "card"})
	got, err := eng.VerifyPayment(context.Background(), types.VerifyParams{
		OrderNo: rec.OrderNo, PaymentID: "pay_R1", Signature: clientSig(rec.OrderNo, "pay_R1"),
	})
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
	return got
}

// TestRefundScenario 全流程场景：999 卢比会员订单 → 确认 → 全额退款 → 二次退款被拒
func TestRefundScenario(t *testing.T) {
	gw := newFakeGateway()
	eng, repo := newTestEngine(gw)

	rec, err := eng.CreateOrder(context.Background(), types.CreateOrderParams{
		UserID:   "user-9",
		Amount:   999,
		Currency: "INR",
		Items:    payment.Items{{Type: "membership", RefID: 1, Name: "会员", Quantity: 1, UnitPrice: 999}},
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, rec.Status)

	gw.addPayment(&types.GatewayPayment{ID: "pay_S1", OrderID: rec.OrderNo, Status: "captured"})
	got, err := eng.VerifyPayment(context.Background(), types.VerifyParams{
		OrderNo: rec.OrderNo, PaymentID: "pay_S1", Signature: clientSig(rec.OrderNo, "pay_S1"),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.Equal(t, "pay_S1", got.TransactionID)

	refunded, err := eng.Refund(context.Background(), rec.OrderNo, 999, "课程取消")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, refunded.Status)
	assert.EqualValues(t, 999, refunded.RefundAmount)
	assert.Equal(t, "课程取消", refunded.RefundReason)
	assert.NotNil(t, refunded.RefundedAt)

	// 二次退款任何金额都必须被拒绝，退款字段保持不变
	_, err = eng.Refund(context.Background(), rec.OrderNo, 1, "再退一次")
	assert.Error(t, err)

	stored, err := repo.GetByOrderNo(context.Background(), rec.OrderNo)
	require.NoError(t, err)
	assert.EqualValues(t, 999, stored.RefundAmount)
	assert.Equal(t, "课程取消", stored.RefundReason)
	assert.Equal(t, 1, gw.refundCalls)
}

func TestRefundExceedsOriginalAmount(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(gw)

	rec := completedPayment(t, gw, eng)

	_, err := eng.Refund(context.Background(), rec.OrderNo, rec.Amount+1, "多退一分")
	assert.ErrorIs(t, err, types.ErrRefundExceedsAmount)
	// 前置条件失败时不碰网关
	assert.Equal(t, 0, gw.refundCalls)
}

func TestRefundNotCompleted(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(gw)

	rec, err := eng.CreateOrder(context.Background(), membershipOrder())
	require.NoError(t, err)

	_, err = eng.Refund(context.Background(), rec.OrderNo, 100, "未支付订单")
	assert.ErrorIs(t, err, types.ErrNotRefundable)
	assert.Equal(t, 0, gw.refundCalls)
}

func TestRefundUnknownOrder(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(gw)

	_, err := eng.Refund(context.Background(), "order_NOSUCH", 100, "不存在")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRefundGatewayFailureLeavesRecordUntouched(t *testing.T) {
	gw := newFakeGateway()
	eng, repo := newTestEngine(gw)

	rec := completedPayment(t, gw, eng)
	gw.failRefund = types.ErrGatewayUnavailable

	_, err := eng.Refund(context.Background(), rec.OrderNo, rec.Amount, "网关超时")
	assert.ErrorIs(t, err, types.ErrGatewayUnavailable)

	// 网关未确认成功，记录保持原样
	stored, err := repo.GetByOrderNo(context.Background(), rec.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)
	assert.EqualValues(t, 0, stored.RefundAmount)
	assert.Nil(t, stored.RefundedAt)
}

// TestMemoryRepositoryOptimisticLock 仓储层乐观锁语义
func TestMemoryRepositoryOptimisticLock(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()

	rec := &payment.Payment{
		OrderNo: "order_V1", Amount: 100, Currency: "INR", Status: payment.StatusPending,
		Items: payment.Items{{Type: "course", RefID: 1, Name: "c", Quantity: 1, UnitPrice: 100}},
	}
	require.NoError(t, repo.Create(ctx, rec))

	// 两个并发读取到同一版本
	a, err := repo.GetByOrderNo(ctx, "order_V1")
	require.NoError(t, err)
	b, err := repo.GetByOrderNo(ctx, "order_V1")
	require.NoError(t, err)

	a.Status = payment.StatusProcessing
	require.NoError(t, repo.Save(ctx, a))

	// 基于旧版本的写入必须失败
	b.Status = payment.StatusFailed
	assert.ErrorIs(t, repo.Save(ctx, b), types.ErrConcurrentModification)

	stored, err := repo.GetByOrderNo(ctx, "order_V1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessing, stored.Status)
}
