package client

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/ws"
)

type recordingBus struct {
	mu    sync.Mutex
	slugs []string
}

func (b *recordingBus) Publish(slug string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slugs = append(b.slugs, slug)
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slugs)
}

func TestFeed_WSURL(t *testing.T) {
	c, _ := NewClient("https://blog.example.com")
	f := NewFeed(c, &recordingBus{})
	if got := f.wsURL("hello world"); got != "wss://blog.example.com/stats/ws?slug=hello+world" {
		t.Fatalf("wsURL = %q", got)
	}
}

func TestFeed_PublishesServerPushes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub()
	r := gin.New()
	r.GET("/stats/ws", ws.NewManager(hub).WebSocketConnect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus := &recordingBus{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewFeed(c, bus).Start(ctx, "hello-world")

	waitFor(t, func() bool { return hub.RoomSize("hello-world") == 1 })

	hub.StatsChanged(ctx, entity.StatsChangedEvent{Slug: "hello-world", Views: 2})
	waitFor(t, func() bool { return bus.count() == 1 })

	cancel()
	waitFor(t, func() bool { return hub.RoomSize("hello-world") == 0 })
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.slugs[0] != "hello-world" {
		t.Fatalf("published %v", bus.slugs)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeed_ReconnectDelay(t *testing.T) {
	c, _ := NewClient("127.0.0.1:1")
	f := NewFeed(c, &recordingBus{})
	f.minBackoff, f.maxBackoff = 100*time.Millisecond, time.Second

	tests := []struct {
		name      string
		cur       time.Duration
		delivered bool
		wantWait  time.Duration
		wantNext  time.Duration
	}{
		{"first failure", 100 * time.Millisecond, false, 100 * time.Millisecond, 200 * time.Millisecond},
		{"keeps growing", 400 * time.Millisecond, false, 400 * time.Millisecond, 800 * time.Millisecond},
		{"capped", time.Second, false, time.Second, time.Second},
		{"healthy connection resets", time.Second, true, 100 * time.Millisecond, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, next := f.reconnectDelay(tt.cur, tt.delivered)
			if wait != tt.wantWait || next != tt.wantNext {
				t.Fatalf("reconnectDelay(%s, %v) = %s, %s; want %s, %s", tt.cur, tt.delivered, wait, next, tt.wantWait, tt.wantNext)
			}
		})
	}
}

func TestFeed_FollowReportsDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub()
	r := gin.New()
	r.GET("/stats/ws", ws.NewManager(hub).WebSocketConnect)
	srv := httptest.NewServer(r)

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	bus := &recordingBus{}
	f := NewFeed(c, bus)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		delivered bool
		err       error
	}
	done := make(chan result, 1)
	go func() {
		d, err := f.follow(ctx, "hello-world")
		done <- result{d, err}
	}()
	waitFor(t, func() bool { return hub.RoomSize("hello-world") == 1 })
	hub.StatsChanged(ctx, entity.StatsChangedEvent{Slug: "hello-world", Views: 1})
	waitFor(t, func() bool { return bus.count() == 1 })
	cancel()
	if res := <-done; !res.delivered {
		t.Fatalf("follow on a live connection: delivered=false err=%v", res.err)
	}

	srv.Close()
	if delivered, err := f.follow(context.Background(), "hello-world"); delivered || err == nil {
		t.Fatalf("follow on a closed server = %v, %v", delivered, err)
	}
}
