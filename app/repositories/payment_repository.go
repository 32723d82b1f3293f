// Package repositories 数据仓储层
package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"eduverse/app/models/payment"
	"eduverse/pkg/database"
	"eduverse/pkg/payment/types"
)

// PaymentRepository 支付记录仓库，实现 types.Repository
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		db: database.DB,
	}
}

// NewPaymentRepositoryWithDB 使用指定连接创建仓库实例，测试时注入
func NewPaymentRepositoryWithDB(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 创建支付记录
// 订单号或交易号违反唯一约束时返回 ErrDuplicateOrderNo
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.ErrDuplicateOrderNo
		}
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}

// Save 带乐观锁校验的保存
//
// 以读取时携带的 lock_version 作为写入条件，不命中说明另一并发单元
// 已抢先写入，返回 ErrConcurrentModification，调用方需重新读取后重试。
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	currentVersion := p.LockVersion
	p.LockVersion = currentVersion + 1

	result := r.db.WithContext(ctx).
		Model(p).
		Where("lock_version = ?", currentVersion).
		Select("*").
		Omit("id", "order_no", "created_at").
		Updates(p)

	if result.Error != nil {
		p.LockVersion = currentVersion
		return fmt.Errorf("save payment record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		p.LockVersion = currentVersion
		return types.ErrConcurrentModification
	}
	return nil
}

// GetByOrderNo 根据订单号获取支付记录
func (r *PaymentRepository) GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by order no: %w", err)
	}
	return &p, nil
}

// GetByTransactionID 根据交易号获取支付记录
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by transaction id: %w", err)
	}
	return &p, nil
}
