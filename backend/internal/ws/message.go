package ws

import "post-stats-service/backend/internal/entity"

const (
	TypeWelcome      = "welcome"
	TypeStatsChanged = "stats_changed"
	TypeHeartbeat    = "heartbeat"
	TypeFeedback     = "feedback"
	TypeIgnored      = "ignored"
)

// ClientMessage 客户端只会发心跳，其余类型一律忽略
type ClientMessage struct {
	Type string `json:"type"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Slug    string `json:"slug,omitempty"`
	Content string `json:"content,omitempty"`
}

// 推送给同一 slug 房间内所有连接的计数变更
type StatsChangedMessage struct {
	Type  string `json:"type"` // 固定 "stats_changed"
	Slug  string `json:"slug"`
	Views uint64 `json:"views"`
	Likes uint64 `json:"likes"`
}

func NewStatsChangedMessage(evt entity.StatsChangedEvent) StatsChangedMessage {
	return StatsChangedMessage{Type: TypeStatsChanged, Slug: evt.Slug, Views: evt.Views, Likes: evt.Likes}
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string       { return m.Type }
func (m StatsChangedMessage) MessageType() string { return m.Type }
