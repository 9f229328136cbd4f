package biz

import "context"

// Locker 按键串行化，返回的函数用于释放锁
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
