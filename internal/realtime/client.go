package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"topup-service/internal/constants"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait 单次写超时
	writeWait = 10 * time.Second
	// pongWait 等待 pong 的最长时间
	pongWait = 60 * time.Second
	// pingPeriod 发送 ping 的间隔，必须小于 pongWait
	pingPeriod = 25 * time.Second
	// maxMessageSize 客户端消息大小上限
	maxMessageSize = 4096
)

// inbound 客户端发来的帧
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// adminJoined join-admin 的应答
type adminJoined struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client 一个 websocket 连接
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// ID 连接 ID
func (c *Client) ID() string { return c.id }

// Send 非阻塞投递
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close 关闭连接
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// ServeHTTP 升级为 websocket 连接（GET /ws）
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	c := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	if !h.Register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.log.Infof("realtime client connected: id=%s, remote=%s", c.id, r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

// readPump 读取客户端事件，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
		c.hub.log.Infof("realtime client disconnected: id=%s", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warnf("realtime read error: id=%s, error=%v", c.id, err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.log.Warnf("realtime malformed frame: id=%s, error=%v", c.id, err)
			continue
		}
		c.handle(&msg)
	}
}

// handle 处理客户端事件
func (c *Client) handle(msg *inbound) {
	switch msg.Event {
	case constants.EventJoinAdmin:
		c.joinAdmin(argString(msg.Data, "token"))
	case constants.EventJoinOrder:
		if orderID := argString(msg.Data, "orderId"); orderID != "" {
			c.hub.Join(c, OrderRoom(orderID))
		}
	case constants.EventLeaveOrder:
		if orderID := argString(msg.Data, "orderId"); orderID != "" {
			c.hub.Leave(c, OrderRoom(orderID))
		}
	default:
		c.hub.log.Debugf("realtime unknown event: id=%s, event=%s", c.id, msg.Event)
	}
}

func (c *Client) joinAdmin(token string) {
	reply := adminJoined{Success: true}
	if c.hub.verifier == nil {
		reply = adminJoined{Error: "Admin verification unavailable"}
	} else if err := c.hub.verifier.VerifyAdminToken(context.Background(), token); err != nil {
		reply = adminJoined{Error: "Invalid token"}
	}
	if reply.Success {
		c.hub.Join(c, constants.RoomAdmin)
	}

	msg, err := json.Marshal(&Message{Event: constants.EventAdminJoined, Data: reply})
	if err == nil {
		c.Send(msg)
	}
}

// writePump 串行写出消息并定时 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// argString 事件参数既可以是字符串，也可以是 {"<key>": "..."}
func argString(data json.RawMessage, key string) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err == nil {
		if v, ok := obj[key].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
