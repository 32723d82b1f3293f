// Package memory 内存版支付记录仓储
//
// 实现 types.Repository 的全部语义（唯一约束、乐观锁版本校验），
// 供单元测试和本地开发使用，不依赖数据库。
package memory

import (
	"context"
	"sync"

	"eduverse/app/models/payment"
	"eduverse/pkg/payment/types"
)

// Repository 内存仓储，并发安全
type Repository struct {
	mu      sync.Mutex
	nextID  uint64
	records map[string]*payment.Payment // orderNo -> record
}

// NewRepository 创建内存仓储
func NewRepository() *Repository {
	return &Repository{
		nextID:  1,
		records: make(map[string]*payment.Payment),
	}
}

// Create 创建支付记录，订单号或交易号冲突时返回 ErrDuplicateOrderNo
func (r *Repository) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[p.OrderNo]; exists {
		return types.ErrDuplicateOrderNo
	}
	p.ID = r.nextID
	r.nextID++
	p.LockVersion = 0

	stored := *p
	r.records[p.OrderNo] = &stored
	return nil
}

// Save 带乐观锁校验的写入
// 传入记录携带的版本与存储中的不一致时返回 ErrConcurrentModification
func (r *Repository) Save(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.records[p.OrderNo]
	if !exists {
		return types.ErrNotFound
	}
	if current.LockVersion != p.LockVersion {
		return types.ErrConcurrentModification
	}

	p.LockVersion++
	stored := *p
	r.records[p.OrderNo] = &stored
	return nil
}

// GetByOrderNo 根据订单号获取支付记录
func (r *Repository) GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[orderNo]
	if !exists {
		return nil, types.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// GetByTransactionID 根据交易号获取支付记录
func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if transactionID == "" {
		return nil, types.ErrNotFound
	}
	for _, rec := range r.records {
		if rec.TransactionID == transactionID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, types.ErrNotFound
}
