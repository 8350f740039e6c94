package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

const (
	BaseTTL     = 24 * time.Hour   // 基础过期时间
	Jitter      = 60 * time.Minute // 随机抖动范围
	EmptyTTL    = 5 * time.Minute  // 空文档的缓存时间
	DocumentKey = "PostStats:document"
)

// 获取随机TTL，防止缓存雪崩
func getRandomTTL() time.Duration {
	// Int63n返回一个int64的值
	return BaseTTL + time.Duration(rand.Int63n(int64(Jitter)))
}

// CachedStore 在 SQL 存储前面挂一层 Redis 旁路缓存，缓存整份文档
// 写入先落库再删缓存，下一次 Read 回源
// gen 每次失效加一：回源期间发生过写入，读到的旧文档就不回填
type CachedStore struct {
	inner repo.StatsStore
	rdb   redis.UniversalClient
	sf    singleflight.Group

	fillMu sync.Mutex
	gen    uint64
}

type cachedAtomicStore struct {
	*CachedStore
	atomic repo.AtomicStatsStore
}

var (
	_ repo.StatsStore       = (*CachedStore)(nil)
	_ repo.AtomicStatsStore = (*cachedAtomicStore)(nil)
)

// NewCachedStore 包装 inner；inner 支持原子更新时返回值也支持
func NewCachedStore(inner repo.StatsStore, rdb redis.UniversalClient) repo.StatsStore {
	c := &CachedStore{inner: inner, rdb: rdb}
	if a, ok := inner.(repo.AtomicStatsStore); ok {
		return &cachedAtomicStore{CachedStore: c, atomic: a}
	}
	return c
}

func (c *CachedStore) readCache(ctx context.Context) (entity.StatsDocument, bool, error) {
	res, err := c.rdb.Get(ctx, DocumentKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.StatsDocument{}, false, nil
		}
		return entity.StatsDocument{}, false, err
	}
	var doc entity.StatsDocument
	if err := json.Unmarshal(res, &doc); err != nil {
		return entity.StatsDocument{}, false, err
	}
	if doc.Posts == nil {
		doc.Posts = make(map[string]entity.PostStats)
	}
	return doc.Clone(), true, nil
}

func (c *CachedStore) writeCache(ctx context.Context, doc entity.StatsDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ttl := getRandomTTL()
	// 空文档缓存时间短一些，防止缓存穿透的同时尽快看到新数据
	if len(doc.Posts) == 0 {
		ttl = EmptyTTL
	}
	return c.rdb.Set(ctx, DocumentKey, b, ttl).Err()
}

func (c *CachedStore) invalidate(ctx context.Context) {
	c.fillMu.Lock()
	c.gen++
	if err := c.rdb.Del(ctx, DocumentKey).Err(); err != nil {
		log.Printf("invalidate stats cache failed: %v", err)
	}
	c.fillMu.Unlock()
	c.sf.Forget(DocumentKey)
}

// fill 只在 gen 没变时回填；和 invalidate 共用 fillMu，回填和删除不会交错
func (c *CachedStore) fill(ctx context.Context, gen uint64, doc entity.StatsDocument) {
	c.fillMu.Lock()
	defer c.fillMu.Unlock()
	if c.gen != gen {
		return
	}
	if err := c.writeCache(ctx, doc); err != nil {
		log.Printf("write stats cache failed: %v", err)
	}
}

func (c *CachedStore) generation() uint64 {
	c.fillMu.Lock()
	defer c.fillMu.Unlock()
	return c.gen
}

// Read 组合策略：Singleflight + 旁路缓存；Redis 出错时直接回源
func (c *CachedStore) Read(ctx context.Context) entity.StatsDocument {
	val, _, _ := c.sf.Do(DocumentKey, func() (interface{}, error) {
		doc, hit, err := c.readCache(ctx)
		if err != nil {
			log.Printf("read stats cache failed: %v", err)
		}
		if hit {
			return doc, nil
		}
		gen := c.generation()
		doc = c.inner.Read(ctx)
		if err == nil {
			c.fill(ctx, gen, doc)
		}
		return doc, nil
	})
	// 使用断言确保不会panic
	if doc, ok := val.(entity.StatsDocument); ok {
		return doc.Clone()
	}
	return entity.NewStatsDocument()
}

func (c *CachedStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	if err := c.inner.Write(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *cachedAtomicStore) Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	st, err := c.atomic.Apply(ctx, slug, action)
	if err != nil {
		return entity.PostStats{}, fmt.Errorf("cached apply: %w", err)
	}
	c.invalidate(ctx)
	return st, nil
}
