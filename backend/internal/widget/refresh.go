package widget

import (
	"sync"
	"time"

	"post-stats-service/backend/internal/eventbus"
)

const DefaultRefreshInterval = 30 * time.Second

// RefreshStrategy 在 slug 需要重新拉取时调用 trigger，直到返回的 stop 被调用；stop 可重复调用
type RefreshStrategy interface {
	Start(slug string, trigger func()) (stop func())
}

// PushRefresh bus 发布该 slug 时刷新
type PushRefresh struct {
	Bus *eventbus.Bus
}

func (p PushRefresh) Start(slug string, trigger func()) func() {
	return p.Bus.SubscribeSlug(slug, trigger)
}

// PullRefresh 每隔 Interval 刷新一次，兜住 bus 看不到的变更（别的进程、漏掉的事件）
type PullRefresh struct {
	Interval time.Duration
}

func (p PullRefresh) Start(slug string, trigger func()) func() {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				trigger()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// DefaultStrategies bus 推送 + 定时轮询
func DefaultStrategies(bus *eventbus.Bus, interval time.Duration) []RefreshStrategy {
	return []RefreshStrategy{PushRefresh{Bus: bus}, PullRefresh{Interval: interval}}
}
