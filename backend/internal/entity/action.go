package entity

import "time"

type Action string

const (
	ActionView   Action = "view"
	ActionLike   Action = "like"
	ActionUnlike Action = "unlike"
)

// ParseAction 只接受三种取值，精确匹配（大小写、空白都敏感）
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionView, ActionLike, ActionUnlike:
		return a, true
	default:
		return "", false
	}
}

// Apply 在内存中对一条记录执行动作，unlike 不会低于 0
func (a Action) Apply(s PostStats) PostStats {
	switch a {
	case ActionView:
		s.Views++
	case ActionLike:
		s.Likes++
	case ActionUnlike:
		if s.Likes > 0 {
			s.Likes--
		}
	}
	return s
}

// StatsChangedEvent 一次成功的 recordAction 之后对外广播的事件
type StatsChangedEvent struct {
	EventID   string    `json:"eventId"`
	Slug      string    `json:"slug"`
	Action    Action    `json:"action"`
	Views     uint64    `json:"views"`
	Likes     uint64    `json:"likes"`
	ChangedAt time.Time `json:"changedAt"`
}
