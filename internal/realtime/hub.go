package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"topup-service/internal/biz"
	"topup-service/internal/conf"
	"topup-service/internal/constants"
	"topup-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// defaultSendBuffer 每个连接的发送缓冲大小
const defaultSendBuffer = 64

// Subscriber 房间订阅者
type Subscriber interface {
	ID() string
	// Send 非阻塞投递，缓冲区满时返回 false
	Send(msg []byte) bool
	// Close 关闭连接，可重复调用
	Close()
}

// TokenVerifier 校验 join-admin 携带的管理员令牌
type TokenVerifier interface {
	VerifyAdminToken(ctx context.Context, token string) error
}

// Message 推送帧
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub 进程内房间广播，按房间投递，至多一次
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]Subscriber
	members  map[string]map[string]struct{} // subscriber id -> rooms
	subs     map[string]Subscriber
	closed   bool
	verifier TokenVerifier
	upgrader websocket.Upgrader
	buffer   int
	log      *log.Helper
	metrics  *metrics.TopupMetrics
}

// NewHub 创建实时推送中心
func NewHub(c *conf.Bootstrap, verifier TokenVerifier, logger log.Logger) *Hub {
	h := &Hub{
		rooms:    make(map[string]map[string]Subscriber),
		members:  make(map[string]map[string]struct{}),
		subs:     make(map[string]Subscriber),
		verifier: verifier,
		buffer:   defaultSendBuffer,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
	var origins []string
	if c.Realtime != nil {
		origins = c.Realtime.AllowedOrigins
		if c.Realtime.SendBuffer > 0 {
			h.buffer = c.Realtime.SendBuffer
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

// Register 登记连接，Hub 已关闭时返回 false
func (h *Hub) Register(sub Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub.ID()] = sub
	h.metrics.RealtimeConnections.Inc()
	return true
}

// Unregister 注销连接并离开所有房间
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID()]; !ok {
		return
	}
	h.leaveAllLocked(sub.ID())
	delete(h.subs, sub.ID())
	h.metrics.RealtimeConnections.Dec()
}

// Join 加入房间，重复加入无副作用
func (h *Hub) Join(sub Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[sub.ID()] = sub

	joined, ok := h.members[sub.ID()]
	if !ok {
		joined = make(map[string]struct{})
		h.members[sub.ID()] = joined
	}
	joined[room] = struct{}{}
}

// Leave 离开房间，空房间被回收
func (h *Hub) Leave(sub Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub.ID(), room)
}

// LeaveAll 离开所有房间
func (h *Hub) LeaveAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(sub.ID())
}

func (h *Hub) leaveLocked(id, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.members[id]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.members, id)
		}
	}
}

func (h *Hub) leaveAllLocked(id string) {
	for room := range h.members[id] {
		h.leaveLocked(id, room)
	}
}

// Publish 向房间内所有订阅者投递事件，缓冲区满的订阅者丢弃该消息
func (h *Hub) Publish(room, event string, data interface{}) error {
	msg, err := json.Marshal(&Message{Event: event, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.rooms[room] {
		if sub.Send(msg) {
			h.metrics.RealtimePublished.WithLabelValues(event).Inc()
			continue
		}
		h.metrics.RealtimeDropped.Inc()
		h.log.Warnf("realtime buffer full, message dropped: subscriber=%s, room=%s, event=%s", id, room, event)
	}
	return nil
}

// RoomSize 房间内订阅者数量
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// OrderRoom 单个订单的房间名
func OrderRoom(orderID string) string {
	return constants.RoomOrderPrefix + orderID
}

// EmitOrderUpdate 推送订单更新：admin 收到完整订单，order-<orderId> 只收到买家可见字段
func (h *Hub) EmitOrderUpdate(ctx context.Context, order *biz.Order) error {
	if err := h.Publish(constants.RoomAdmin, constants.EventOrderUpdate, order); err != nil {
		return err
	}
	return h.Publish(OrderRoom(order.OrderID), constants.EventOrderUpdate, order.Summary())
}

// EmitDashboardUpdate 推送仪表盘统计到 admin
func (h *Hub) EmitDashboardUpdate(ctx context.Context, stats *biz.DashboardStats) error {
	return h.Publish(constants.RoomAdmin, constants.EventDashboardUpdate, stats)
}

// AdminWatching 是否有管理员连接
func (h *Hub) AdminWatching() bool {
	return h.RoomSize(constants.RoomAdmin) > 0
}

// Start 实现 transport.Server，连接由 HTTP 服务器的 /ws 路由接入
func (h *Hub) Start(ctx context.Context) error {
	h.log.Info("Realtime hub started")
	return nil
}

// Stop 关闭所有连接，之后不再接受新连接
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	subs := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	h.log.Infof("Stopping realtime hub, closing %d connections", len(subs))
	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

// originChecker 空列表或包含 * 时允许所有来源
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
