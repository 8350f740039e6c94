package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
	"post-stats-service/backend/internal/store"
)

// countingStore 记录回源次数
type countingStore struct {
	*store.MemoryStore
	reads int
}

func (c *countingStore) Read(ctx context.Context) entity.StatsDocument {
	c.reads++
	return c.MemoryStore.Read(ctx)
}

func newCacheDeps(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// gatedStore 第一次 Read 拿到快照后卡住，直到 release 关闭
type gatedStore struct {
	*store.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Read(ctx context.Context) entity.StatsDocument {
	doc := g.MemoryStore.Read(ctx)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return doc
}

// 只有 Read/Write，没有 Apply
type plainStore struct{ repo.StatsStore }

func TestCachedStore_ReadThroughAndInvalidate(t *testing.T) {
	mr, rdb := newCacheDeps(t)
	inner := &countingStore{MemoryStore: store.NewMemoryStore()}
	s := NewCachedStore(inner, rdb)
	ctx := context.Background()

	doc := entity.NewStatsDocument()
	doc.Put(entity.PostStats{Slug: "a", Views: 2})
	if err := s.Write(ctx, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := s.Read(ctx); !got.Equal(doc) {
		t.Fatalf("first Read = %v", got.Posts)
	}
	if got := s.Read(ctx); !got.Equal(doc) {
		t.Fatalf("cached Read = %v", got.Posts)
	}
	if inner.reads != 1 {
		t.Fatalf("inner reads = %d, want 1 (second read should hit cache)", inner.reads)
	}
	if ttl := mr.TTL(DocumentKey); ttl < BaseTTL || ttl > BaseTTL+Jitter {
		t.Fatalf("ttl = %v", ttl)
	}

	doc.Put(entity.PostStats{Slug: "a", Views: 3})
	if err := s.Write(ctx, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if mr.Exists(DocumentKey) {
		t.Fatal("Write should invalidate the cached document")
	}
	if got := s.Read(ctx).Get("a").Views; got != 3 {
		t.Fatalf("views after write = %d, want 3", got)
	}
}

func TestCachedStore_EmptyDocumentShortTTL(t *testing.T) {
	mr, rdb := newCacheDeps(t)
	s := NewCachedStore(store.NewMemoryStore(), rdb)
	if got := s.Read(context.Background()); len(got.Posts) != 0 {
		t.Fatalf("Read = %v", got.Posts)
	}
	if ttl := mr.TTL(DocumentKey); ttl != EmptyTTL {
		t.Fatalf("empty ttl = %v, want %v", ttl, EmptyTTL)
	}
}

func TestCachedStore_AtomicPassThrough(t *testing.T) {
	mr, rdb := newCacheDeps(t)
	ctx := context.Background()

	s := NewCachedStore(store.NewMemoryStore(), rdb)
	a, ok := s.(repo.AtomicStatsStore)
	if !ok {
		t.Fatal("wrapping an atomic store should stay atomic")
	}
	s.Read(ctx)
	if _, err := a.Apply(ctx, "p", entity.ActionLike); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if mr.Exists(DocumentKey) {
		t.Fatal("Apply should invalidate the cached document")
	}
	if got := s.Read(ctx).Get("p").Likes; got != 1 {
		t.Fatalf("likes = %d", got)
	}

	if _, ok := NewCachedStore(plainStore{store.NewFileStore(t.TempDir() + "/s.json")}, rdb).(repo.AtomicStatsStore); ok {
		t.Fatal("wrapping a plain store must not claim atomic apply")
	}
}

func TestCachedStore_RedisDownFallsBackToInner(t *testing.T) {
	mr, rdb := newCacheDeps(t)
	inner := store.NewMemoryStore()
	s := NewCachedStore(inner, rdb)
	ctx := context.Background()
	doc := entity.NewStatsDocument()
	doc.Put(entity.PostStats{Slug: "a", Likes: 1})
	if err := inner.Write(ctx, doc); err != nil {
		t.Fatal(err)
	}

	mr.SetError("LOADING redis is loading the dataset in memory")
	if got := s.Read(ctx); !got.Equal(doc) {
		t.Fatalf("Read with redis down = %v", got.Posts)
	}
	inner.FailWrites = errors.New("disk full")
	if err := s.Write(ctx, doc); err == nil {
		t.Fatal("inner write failure must surface")
	}
}

func TestCachedStore_WriteDuringReadDoesNotCacheStaleDocument(t *testing.T) {
	mr, rdb := newCacheDeps(t)
	inner := &gatedStore{MemoryStore: store.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	s := NewCachedStore(inner, rdb)
	ctx := context.Background()

	stale := make(chan entity.StatsDocument, 1)
	go func() { stale <- s.Read(ctx) }()
	<-inner.entered

	doc := entity.NewStatsDocument()
	doc.Put(entity.PostStats{Slug: "a", Views: 1})
	if err := s.Write(ctx, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	close(inner.release)
	if got := <-stale; len(got.Posts) != 0 {
		t.Fatalf("read started before the write = %v", got.Posts)
	}

	if mr.Exists(DocumentKey) {
		t.Fatal("read overlapping a write must not fill the cache")
	}
	if got := s.Read(ctx).Get("a").Views; got != 1 {
		t.Fatalf("views after write = %d, want 1", got)
	}
	if ttl := mr.TTL(DocumentKey); ttl < BaseTTL {
		t.Fatalf("fresh document ttl = %v", ttl)
	}
}
