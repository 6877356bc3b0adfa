// Package hub 实现站内通知的实时推送：每个登录用户可挂多条 websocket
// 连接，通知按用户 ID 投递。多实例部署时经 Redis 发布订阅转发（见 notifier.go）。
package hub

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	// 单用户最大连接数（多标签页）
	maxConnsPerUser = 8
	// 全局最大连接数
	maxTotalConns = 10000
)

// Hub 维护 userID -> 连接集合 的映射
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
}

var (
	hubInstance *Hub
	hubOnce     sync.Once
)

// Get 获取单例 Hub
func Get() *Hub {
	hubOnce.Do(func() {
		hubInstance = &Hub{
			conns: make(map[uint]map[*Client]struct{}),
		}
	})
	return hubInstance
}

// NewHub 主要供测试构造独立实例
func NewHub() *Hub {
	return &Hub{
		conns: make(map[uint]map[*Client]struct{}),
	}
}

// Register 为用户注册一条连接，超出限额时拒绝
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	return client, nil
}

// Unregister 移除连接并关闭其发送通道
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	close(client.send)
}

// SendToUser 将消息投递给某用户的全部连接，返回成功入队的连接数。
// 发送通道已满的慢连接直接跳过，不阻塞调用方。
func (h *Hub) SendToUser(userID uint, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.conns[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Broadcast 全站广播（系统通知用）
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, m := range h.conns {
		for client := range m {
			select {
			case client.send <- payload:
				delivered++
			default:
			}
		}
	}
	return delivered
}

// UserConns 返回某用户当前连接数
func (h *Hub) UserConns(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// TotalConns 返回全局连接数
func (h *Hub) TotalConns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}
