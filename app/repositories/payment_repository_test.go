package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"eduverse/app/models/payment"
	"eduverse/pkg/payment/types"
)

// newTestRepo 使用内存 SQLite 构建仓库
func newTestRepo(t *testing.T) *PaymentRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存库只允许单连接，多连接会各自拿到独立的空库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&payment.Payment{}))
	return NewPaymentRepositoryWithDB(db)
}

func testRecord(orderNo string) *payment.Payment {
	return &payment.Payment{
		OrderNo:  orderNo,
		UserID:   "user-1",
		Amount:   49900,
		Currency: "INR",
		Status:   payment.StatusPending,
		Items: payment.Items{
			{Type: "course", RefID: 11, Name: "Go 实战", Quantity: 1, UnitPrice: 49900},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("order_T1")
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.GetByOrderNo(ctx, "order_T1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, got.Status)
	assert.EqualValues(t, 49900, got.Amount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "course", got.Items[0].Type)
}

func TestCreateDuplicateOrderNo(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("order_T2")))
	err := repo.Create(ctx, testRecord("order_T2"))
	assert.ErrorIs(t, err, types.ErrDuplicateOrderNo)
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetByOrderNo(ctx, "order_NOSUCH")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = repo.GetByTransactionID(ctx, "pay_NOSUCH")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetByTransactionID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("order_T3")
	require.NoError(t, repo.Create(ctx, rec))

	rec.TransactionID = "pay_T3"
	rec.Status = payment.StatusCompleted
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByTransactionID(ctx, "pay_T3")
	require.NoError(t, err)
	assert.Equal(t, "order_T3", got.OrderNo)
}

func TestSaveOptimisticLockConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("order_T4")))

	// 模拟两个并发单元读取到同一版本
	a, err := repo.GetByOrderNo(ctx, "order_T4")
	require.NoError(t, err)
	b, err := repo.GetByOrderNo(ctx, "order_T4")
	require.NoError(t, err)

	a.Status = payment.StatusProcessing
	a.TransactionID = "pay_T4"
	require.NoError(t, repo.Save(ctx, a))

	// 旧版本写入被拒绝，更新未丢失
	b.Status = payment.StatusFailed
	assert.ErrorIs(t, repo.Save(ctx, b), types.ErrConcurrentModification)

	got, err := repo.GetByOrderNo(ctx, "order_T4")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessing, got.Status)
	assert.Equal(t, "pay_T4", got.TransactionID)
}

func TestSaveRefreshedRetrySucceeds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("order_T5")))

	a, _ := repo.GetByOrderNo(ctx, "order_T5")
	b, _ := repo.GetByOrderNo(ctx, "order_T5")

	a.Status = payment.StatusProcessing
	require.NoError(t, repo.Save(ctx, a))

	b.Status = payment.StatusCompleted
	require.ErrorIs(t, repo.Save(ctx, b), types.ErrConcurrentModification)

	// 冲突后重新读取再写入即可成功
	fresh, err := repo.GetByOrderNo(ctx, "order_T5")
	require.NoError(t, err)
	fresh.Status = payment.StatusCompleted
	require.NoError(t, repo.Save(ctx, fresh))

	got, _ := repo.GetByOrderNo(ctx, "order_T5")
	assert.Equal(t, payment.StatusCompleted, got.Status)
}

func TestGatewayMetaMergePersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord("order_T6")
	require.NoError(t, repo.Create(ctx, rec))

	rec.GatewayMeta.Merge(payment.GatewayMeta{Method: "card", Bank: "HDFC"})
	require.NoError(t, repo.Save(ctx, rec))

	// 第二次合并不丢失已有字段
	got, _ := repo.GetByOrderNo(ctx, "order_T6")
	got.GatewayMeta.Merge(payment.GatewayMeta{Email: "u@example.com"})
	require.NoError(t, repo.Save(ctx, got))

	final, err := repo.GetByOrderNo(ctx, "order_T6")
	require.NoError(t, err)
	assert.Equal(t, "card", final.GatewayMeta.Method)
	assert.Equal(t, "HDFC", final.GatewayMeta.Bank)
	assert.Equal(t, "u@example.com", final.GatewayMeta.Email)
}
