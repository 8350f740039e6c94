// Package likestate 记录当前客户端点赞过哪些文章
// 只决定下一次发 like 还是 unlike 以及图标状态，点赞数以服务端为准
package likestate

import "sync"

type Store interface {
	HasLiked(slug string) bool
	// SetLiked 立即落盘；返回错误说明记录没有改动
	SetLiked(slug string, liked bool) error
}

// MemoryStore 进程内实现，测试用
type MemoryStore struct {
	mu    sync.RWMutex
	liked map[string]bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(liked ...string) *MemoryStore {
	m := &MemoryStore{liked: make(map[string]bool)}
	for _, s := range liked {
		m.liked[s] = true
	}
	return m
}

func (m *MemoryStore) HasLiked(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liked[slug]
}

func (m *MemoryStore) SetLiked(slug string, liked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if liked {
		m.liked[slug] = true
	} else {
		delete(m.liked, slug)
	}
	return nil
}
