package biz

import (
	"context"
)

// LookupKeys 匹配订单的候选键
type LookupKeys struct {
	TransactionID string
	OrderRef      string // 内部 ID 或 orderId
}

// LookupStrategy 单个查找策略，未命中返回 nil, nil
type LookupStrategy func(ctx context.Context, repo OrderRepo, keys LookupKeys) (*Order, error)

// LookupChain 按优先级依次尝试的查找策略，第一个命中的结果生效
type LookupChain []LookupStrategy

// ByTransactionID 按网关交易号精确匹配
func ByTransactionID(ctx context.Context, repo OrderRepo, keys LookupKeys) (*Order, error) {
	if keys.TransactionID == "" {
		return nil, nil
	}
	return repo.GetOrderByTransactionID(ctx, keys.TransactionID)
}

// ByOrderRef 按 metadata.orderId 匹配内部 ID 或 orderId
func ByOrderRef(ctx context.Context, repo OrderRepo, keys LookupKeys) (*Order, error) {
	if keys.OrderRef == "" {
		return nil, nil
	}
	return repo.GetOrderByRef(ctx, keys.OrderRef)
}

// DefaultLookupChain 交易号优先，其次订单引用
var DefaultLookupChain = LookupChain{ByTransactionID, ByOrderRef}

// Find 依次执行策略，存储错误立即返回
func (c LookupChain) Find(ctx context.Context, repo OrderRepo, keys LookupKeys) (*Order, error) {
	for _, strategy := range c {
		order, err := strategy(ctx, repo, keys)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, nil
}
