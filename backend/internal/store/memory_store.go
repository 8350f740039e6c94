package store

import (
	"context"
	"sync"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

// MemoryStore 进程内的文档存储，主要给测试和 backend=memory 用
// Read/Write 各自加锁并拷贝，但两者之间不加锁：和文件存储一样存在读-改-写竞争
type MemoryStore struct {
	mu  sync.RWMutex
	doc entity.StatsDocument
	// 测试用：非 nil 时 Write 直接返回该错误
	FailWrites error
}

var _ repo.AtomicStatsStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: entity.NewStatsDocument()}
}

func (m *MemoryStore) Read(ctx context.Context) entity.StatsDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Clone()
}

func (m *MemoryStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.doc = doc.Clone()
	return nil
}

// Apply 在同一把锁内完成读-改-写
func (m *MemoryStore) Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return entity.PostStats{}, m.FailWrites
	}
	s := action.Apply(m.doc.Get(slug))
	m.doc.Put(s)
	return s, nil
}
