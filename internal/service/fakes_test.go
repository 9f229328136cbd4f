package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/conf"
	topupErrors "topup-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const testSecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var testLogger = log.NewStdLogger(io.Discard)

// memRepo 内存订单存储
type memRepo struct {
	mu     sync.Mutex
	nextID uint64
	orders map[string]*biz.Order
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]*biz.Order{}}
}

func clone(o *biz.Order) *biz.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]biz.OrderItem(nil), o.Items...)
	return &c
}

func (r *memRepo) seed(o *biz.Order) *biz.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := clone(o)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.orders[c.OrderID] = c
	return clone(c)
}

func (r *memRepo) get(orderID string) *biz.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.orders[orderID])
}

func (r *memRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memRepo) CreateOrder(ctx context.Context, o *biz.Order) (*biz.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.get(o.OrderID) != nil {
		return nil, topupErrors.ErrorConflict("order %s already exists", o.OrderID)
	}
	return r.seed(o), nil
}

func (r *memRepo) GetOrderByOrderID(ctx context.Context, orderID string) (*biz.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.get(orderID), nil
}

func (r *memRepo) find(match func(o *biz.Order) bool) (*biz.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			return clone(o), nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetOrderByTransactionID(ctx context.Context, transactionID string) (*biz.Order, error) {
	return r.find(func(o *biz.Order) bool { return o.TransactionID == transactionID })
}

func (r *memRepo) GetOrderByRef(ctx context.Context, ref string) (*biz.Order, error) {
	return r.find(func(o *biz.Order) bool {
		return o.OrderID == ref || strconv.FormatUint(o.ID, 10) == ref
	})
}

func (r *memRepo) UpdateOrder(ctx context.Context, orderID string, mutate biz.OrderMutator) (*biz.Order, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	next := clone(cur)
	changed, err := mutate(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return clone(cur), nil
	}
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now()
	r.orders[orderID] = next
	return clone(next), nil
}

func (r *memRepo) ListOrders(ctx context.Context, filter *biz.OrderFilter) ([]*biz.Order, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*biz.Order
	for _, o := range r.orders {
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, clone(o))
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*biz.Order, error) {
	return nil, nil
}

// noopLocker 单测中请求串行执行，不需要真正加锁
type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// recordingDispatcher 记录确认回调
type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
}

func (d *recordingDispatcher) DispatchConfirm(ctx context.Context, transactionID, orderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, transactionID)
	return nil
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

// memLogRepo 记录通知日志
type memLogRepo struct {
	mu   sync.Mutex
	logs []*biz.NotificationLog
}

func (r *memLogRepo) SaveNotificationLog(ctx context.Context, entry *biz.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memLogRepo) results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Result)
	}
	return out
}

// stubGateway 网关桩
type stubGateway struct {
	status    string
	statusErr error
	checkout  *biz.CheckoutReply
	requests  []*biz.CheckoutRequest
	queried   []string
}

func (g *stubGateway) CreateCheckout(ctx context.Context, req *biz.CheckoutRequest) (*biz.CheckoutReply, error) {
	g.requests = append(g.requests, req)
	if g.checkout == nil {
		return nil, topupErrors.ErrorGateway("checkout unavailable")
	}
	return g.checkout, nil
}

func (g *stubGateway) ConfirmTransaction(ctx context.Context, transactionID string) error {
	return nil
}

func (g *stubGateway) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	g.queried = append(g.queried, transactionID)
	return g.status, g.statusErr
}

// statsStub 固定的仪表盘统计
type statsStub struct{}

func (statsStub) GetDashboardStats(ctx context.Context, now time.Time) (*biz.DashboardStats, error) {
	return &biz.DashboardStats{DailyOrders: 2, TotalRevenue: 19.98}, nil
}

type fixture struct {
	repo       *memRepo
	dispatcher *recordingDispatcher
	logs       *memLogRepo
	gateway    *stubGateway
	srv        *http.Server
}

func testBootstrap(secretKey string) *conf.Bootstrap {
	return &conf.Bootstrap{
		Gateway: &conf.Gateway{
			BaseURL:        "http://gateway.test",
			ApiKey:         "test-api-key",
			SecretKey:      secretKey,
			ConfirmTimeout: conf.NewDuration(time.Second),
		},
		Site: &conf.Site{BaseURL: "http://shop.test"},
	}
}

func newFixture(secretKey string) *fixture {
	f := &fixture{
		repo:       newMemRepo(),
		dispatcher: &recordingDispatcher{},
		logs:       &memLogRepo{},
		gateway:    &stubGateway{},
	}
	cfg := biz.NewTopupConfig(testBootstrap(secretKey))
	events := biz.NewOrderEvents(nil, nil, testLogger)
	reconciler := biz.NewReconcileUseCase(f.repo, noopLocker{}, events, f.dispatcher, f.logs, cfg, testLogger)
	confirm := biz.NewConfirmUseCase(f.gateway, cfg, testLogger)
	orders := biz.NewOrderUseCase(f.repo, f.gateway, events, cfg, testLogger)
	stats := biz.NewStatsUseCase(statsStub{}, testLogger)

	f.srv = http.NewServer()
	RegisterNotificationHTTPServer(f.srv, NewNotificationService(reconciler, confirm, cfg, testLogger))
	RegisterOrderHTTPServer(f.srv, NewOrderService(orders, stats, testLogger))
	return f
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
