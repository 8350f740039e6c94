package client

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher feed 只需要 bus 的发布端
type Publisher interface {
	Publish(slug string)
}

// Feed 把 /stats/ws 的服务端推送转进本地 bus，别的进程里的变更不用等轮询也能看到
type Feed struct {
	baseURL    *url.URL
	dialer     *websocket.Dialer
	bus        Publisher
	minBackoff time.Duration
	maxBackoff time.Duration
}

type feedMessage struct {
	Type string `json:"type"`
	Slug string `json:"slug"`
}

const feedStatsChanged = "stats_changed"

func NewFeed(c *Client, bus Publisher) *Feed {
	return &Feed{
		baseURL:    c.BaseURL(),
		dialer:     websocket.DefaultDialer,
		bus:        bus,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

func (f *Feed) wsURL(slug string) string {
	u := *f.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/stats/ws"
	u.RawQuery = url.Values{"slug": {slug}}.Encode()
	return u.String()
}

// Start 在后台订阅 slug 直到 ctx 结束，断线后指数退避重连（封顶 maxBackoff）
func (f *Feed) Start(ctx context.Context, slug string) {
	go func() {
		backoff := f.minBackoff
		for {
			delivered, err := f.follow(ctx, slug)
			if ctx.Err() != nil {
				return
			}
			var wait time.Duration
			wait, backoff = f.reconnectDelay(backoff, delivered)
			if err != nil {
				log.Printf("stats feed %s: %v (retry in %s)", slug, err, wait)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

// reconnectDelay 返回这次等待时间和下一次的退避基准
// 上一条连接收到过消息说明链路是好的，退避从 minBackoff 重新算
func (f *Feed) reconnectDelay(cur time.Duration, delivered bool) (wait, next time.Duration) {
	if delivered {
		cur = f.minBackoff
	}
	next = cur * 2
	if next > f.maxBackoff {
		next = f.maxBackoff
	}
	return cur, next
}

// follow 阻塞在一条连接上，把该 slug 的 stats_changed 转发到 bus
// delivered 表示这条连接上至少读到过一条消息
func (f *Feed) follow(ctx context.Context, slug string) (delivered bool, err error) {
	conn, _, err := f.dialer.DialContext(ctx, f.wsURL(slug), nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg feedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}
		delivered = true
		if msg.Type == feedStatsChanged && msg.Slug == slug {
			f.bus.Publish(slug)
		}
	}
}
