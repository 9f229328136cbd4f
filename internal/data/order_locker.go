package data

import (
	"context"
	"sync"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/constants"
	topupErrors "topup-service/internal/errors"
	"topup-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// reconcileLockExpiry 对账锁过期时间，覆盖一次对账的最长耗时
const reconcileLockExpiry = 15 * time.Second

// orderLocker 按交易号串行化对账：有 Redis 时使用 redsync，否则进程内互斥
type orderLocker struct {
	sync    *redsync.Redsync
	local   *keyedMutex
	log     *log.Helper
	metrics *metrics.TopupMetrics
}

// NewOrderLocker 创建对账锁（返回 biz.Locker 接口）
func NewOrderLocker(sync *redsync.Redsync, logger log.Logger) biz.Locker {
	return &orderLocker{
		sync:    sync,
		local:   newKeyedMutex(),
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Lock 获取锁，返回释放函数
func (l *orderLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := constants.RedisKeyReconcileLock + key
	lockStartTime := time.Now()

	if l.sync == nil {
		unlock, err := l.local.Lock(ctx, lockKey)
		l.observe(lockStartTime, err)
		if err != nil {
			return nil, topupErrors.ErrorStorage("acquire reconcile lock failed").WithCause(err)
		}
		return unlock, nil
	}

	mutex := l.sync.NewMutex(lockKey,
		redsync.WithExpiry(reconcileLockExpiry),
		redsync.WithTries(64),
		redsync.WithRetryDelay(50*time.Millisecond),
	)
	err := mutex.LockContext(ctx)
	l.observe(lockStartTime, err)
	if err != nil {
		l.log.Errorf("Failed to acquire reconcile lock: key=%s, error=%v", key, err)
		return nil, topupErrors.ErrorStorage("acquire reconcile lock failed").WithCause(err)
	}
	return func() {
		unlockCtx, cancel := cacheContext()
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Warnf("Failed to release reconcile lock: key=%s, error=%v", key, err)
		}
	}, nil
}

func (l *orderLocker) observe(start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
	l.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
}

// keyedMutex 进程内按键互斥，空闲的键会被回收
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

type keyedSlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]*keyedSlot)}
}

// Lock 获取 key 对应的锁，ctx 取消时放弃等待
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &keyedSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			k.release(key, slot)
		})
	}, nil
}

func (k *keyedMutex) release(key string, slot *keyedSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}

// size 当前持有或等待中的键数量
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
