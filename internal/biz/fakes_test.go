package biz

import (
	"context"
	"strconv"
	"sync"
	"time"

	"topup-service/internal/conf"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const testSecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var testLogger = log.NewStdLogger(discard{})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testConfig() *TopupConfig {
	return NewTopupConfig(&conf.Bootstrap{
		Gateway: &conf.Gateway{
			BaseURL:        "http://gateway.test",
			ApiKey:         "test-api-key",
			SecretKey:      testSecretKey,
			ConfirmTimeout: conf.NewDuration(time.Second),
		},
		Site: &conf.Site{BaseURL: "http://shop.test/"},
	})
}

// memOrderRepo 内存订单存储，UpdateOrder 在互斥锁内执行
type memOrderRepo struct {
	mu      sync.Mutex
	nextID  uint64
	orders  map[string]*Order
	err     error // 非空时所有方法返回该错误
	creates int
	updates int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*Order{}}
}

func cloneOrder(o *Order) *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

func (r *memOrderRepo) seed(o *Order) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := cloneOrder(o)
	c.ID = r.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	r.orders[c.OrderID] = c
	return cloneOrder(c)
}

func (r *memOrderRepo) get(orderID string) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrder(r.orders[orderID])
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memOrderRepo) CreateOrder(ctx context.Context, order *Order) (*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	if _, ok := r.orders[order.OrderID]; ok {
		r.mu.Unlock()
		return nil, topupErrors.ErrorConflict("order %s already exists", order.OrderID)
	}
	r.creates++
	r.mu.Unlock()
	return r.seed(order), nil
}

func (r *memOrderRepo) GetOrderByOrderID(ctx context.Context, orderID string) (*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.get(orderID), nil
}

func (r *memOrderRepo) GetOrderByTransactionID(ctx context.Context, transactionID string) (*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TransactionID == transactionID {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *memOrderRepo) GetOrderByRef(ctx context.Context, ref string) (*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderID == ref || strconv.FormatUint(o.ID, 10) == ref {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *memOrderRepo) UpdateOrder(ctx context.Context, orderID string, mutate OrderMutator) (*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	next := cloneOrder(cur)
	changed, err := mutate(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cloneOrder(cur), nil
	}
	r.updates++
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now()
	r.orders[orderID] = next
	return cloneOrder(next), nil
}

func (r *memOrderRepo) ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if o.PaymentStatus == "pending" && o.CreatedAt.Before(before) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

// keyedLocker 测试用按键互斥锁
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
	err   error
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: map[string]*sync.Mutex{}}
}

func (l *keyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type publishedEvent struct {
	event string
	order *Order
	stats *DashboardStats
}

// fakePublisher 记录推送事件
type fakePublisher struct {
	mu       sync.Mutex
	events   []publishedEvent
	watching bool
	err      error
}

func (p *fakePublisher) EmitOrderUpdate(ctx context.Context, order *Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: "order-update", order: cloneOrder(order)})
	return p.err
}

func (p *fakePublisher) EmitDashboardUpdate(ctx context.Context, stats *DashboardStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: "dashboard-update", stats: stats})
	return p.err
}

func (p *fakePublisher) AdminWatching() bool { return p.watching }

func (p *fakePublisher) orderUpdates() []*Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Order
	for _, e := range p.events {
		if e.event == "order-update" {
			out = append(out, e.order)
		}
	}
	return out
}

// fakeDispatcher 记录确认回调投递
type fakeDispatcher struct {
	mu     sync.Mutex
	txs    []string
	orders []string
}

func (d *fakeDispatcher) DispatchConfirm(ctx context.Context, transactionID, orderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txs = append(d.txs, transactionID)
	d.orders = append(d.orders, orderID)
	return nil
}

func (d *fakeDispatcher) dispatchedOrders() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.orders...)
}

func (d *fakeDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.txs...)
}

// fakeLogRepo 记录通知日志
type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*NotificationLog
}

func (r *fakeLogRepo) SaveNotificationLog(ctx context.Context, entry *NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLogRepo) last() *NotificationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}

// fakeStatsRepo 固定统计结果
type fakeStatsRepo struct {
	stats *DashboardStats
	calls int
}

func (r *fakeStatsRepo) GetDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	r.calls++
	return r.stats, nil
}

// fakeGateway 网关客户端，行为由函数字段决定
type fakeGateway struct {
	CreateCheckoutFunc       func(ctx context.Context, req *CheckoutRequest) (*CheckoutReply, error)
	ConfirmTransactionFunc   func(ctx context.Context, transactionID string) error
	GetTransactionStatusFunc func(ctx context.Context, transactionID string) (string, error)
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutReply, error) {
	return g.CreateCheckoutFunc(ctx, req)
}

func (g *fakeGateway) ConfirmTransaction(ctx context.Context, transactionID string) error {
	return g.ConfirmTransactionFunc(ctx, transactionID)
}

func (g *fakeGateway) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	return g.GetTransactionStatusFunc(ctx, transactionID)
}

// reconcileFixture 对账测试依赖
type reconcileFixture struct {
	repo       *memOrderRepo
	locker     *keyedLocker
	publisher  *fakePublisher
	dispatcher *fakeDispatcher
	logs       *fakeLogRepo
	uc         *ReconcileUseCase
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		repo:       newMemOrderRepo(),
		locker:     newKeyedLocker(),
		publisher:  &fakePublisher{},
		dispatcher: &fakeDispatcher{},
		logs:       &fakeLogRepo{},
	}
	events := NewOrderEvents(f.publisher, &fakeStatsRepo{stats: &DashboardStats{}}, testLogger)
	f.uc = NewReconcileUseCase(f.repo, f.locker, events, f.dispatcher, f.logs, testConfig(), testLogger)
	return f
}

func pendingOrder(orderID string) *Order {
	return &Order{
		OrderID:           orderID,
		GameID:            "g1",
		GameName:          "Mobile Legends",
		PackageID:         "pk1",
		PackageName:       "100 Diamonds",
		Price:             5,
		Currency:          "USD",
		UserID:            "u1",
		PaymentStatus:     "pending",
		FulfillmentStatus: "pending",
		Status:            "pending",
		Items:             []OrderItem{{ProductID: "pk1", Name: "100 Diamonds", Price: 5, Quantity: 1}},
		TotalQuantity:     1,
	}
}
