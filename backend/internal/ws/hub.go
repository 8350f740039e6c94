package ws

import (
	"context"
	"sync"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/stats"
)

type Hub struct {
	// 保护 rooms，加入/离开房间、广播时都会先加锁
	mu sync.RWMutex
	// slug -> 连接集合
	rooms map[string]map[*Conn]struct{}
}

// 确保 Hub 实现了 stats.Notifier 接口
var _ stats.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

// Join 将连接加入指定 slug 的房间
func (h *Hub) Join(slug string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[slug] == nil {
		// 同一篇文章可能同时开着多个页面，按连接逐个发
		h.rooms[slug] = make(map[*Conn]struct{})
	}
	h.rooms[slug][c] = struct{}{}
}

// Leave 将连接从指定房间移除，空房间顺手删掉
func (h *Hub) Leave(slug string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[slug]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, slug)
		}
	}
}

// RoomSize 当前房间内的连接数
func (h *Hub) RoomSize(slug string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[slug])
}

// 在锁内拷贝一份连接列表，发送在锁外进行
func (h *Hub) snapshot(slug string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.rooms[slug]))
	for c := range h.rooms[slug] {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) Broadcast(slug string, msg OutboundMessage) {
	for _, c := range h.snapshot(slug) {
		c.SendMessage_Enqueue(msg)
	}
}

// StatsChanged 把变更推给订阅了该 slug 的连接；慢连接直接丢消息，不阻塞 recordAction
func (h *Hub) StatsChanged(ctx context.Context, evt entity.StatsChangedEvent) {
	h.Broadcast(evt.Slug, NewStatsChangedMessage(evt))
}
