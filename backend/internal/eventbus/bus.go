// Package eventbus 进程内的发布/订阅，通知已挂载的组件某篇文章的统计变了
package eventbus

import (
	"log"
	"sync"
)

type Listener func(slug string)

type subscription struct {
	id uint64
	fn Listener
}

// Bus 每个应用上下文建一个，所有组件共享
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func New() *Bus {
	return &Bus{}
}

// Subscribe 注册 fn，返回取消订阅函数；重复调用取消函数无副作用
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeSlug 只转发该 slug 的发布
func (b *Bus) SubscribeSlug(slug string, fn func()) (unsubscribe func()) {
	return b.Subscribe(func(s string) {
		if s == slug {
			fn()
		}
	})
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish 在调用方 goroutine 上按注册顺序同步调用当前所有 listener
// 先拷贝快照再调用，listener 里可以取消订阅；某个 listener panic 只记日志，不影响其他
func (b *Bus) Publish(slug string) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		invoke(s, slug)
	}
}

func invoke(s subscription, slug string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event bus listener %d panicked on %s: %v", s.id, slug, r)
		}
	}()
	s.fn(slug)
}
