package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

var (
	ErrMissingParameter  = errors.New("missing slug or action")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrPersistFailure    = errors.New("failed to update stats")
)

// Notifier 接收变更事件（websocket hub、kafka 等）
// 实现方不能阻塞太久，也不能影响 recordAction 的结果
type Notifier interface {
	StatsChanged(ctx context.Context, evt entity.StatsChangedEvent)
}

type Options struct {
	// Atomic 为 true 且存储实现了 repo.AtomicStatsStore 时，recordAction 走按 key 原子更新
	// 默认 false：整份文档读-改-写，并发写入可能丢计数
	Atomic    bool
	Notifiers []Notifier
}

type Service struct {
	store     repo.StatsStore
	atomic    repo.AtomicStatsStore
	sf        singleflight.Group
	notifiers []Notifier
	now       func() time.Time
}

func NewService(store repo.StatsStore, opts Options) *Service {
	s := &Service{store: store, notifiers: opts.Notifiers, now: time.Now}
	if opts.Atomic {
		if a, ok := store.(repo.AtomicStatsStore); ok {
			s.atomic = a
		} else {
			log.Printf("stats store %T has no atomic apply, falling back to read-modify-write", store)
		}
	}
	return s
}

// Atomic 报告 recordAction 是否走原子路径
func (s *Service) Atomic() bool { return s.atomic != nil }

func (s *Service) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

const documentKey = "document"

// 并发的读请求合并成一次 Read；返回共享结果，调用方只读
// 写入之后会 Forget，写后发起的读不会并入写前开始的那次 Read
func (s *Service) document(ctx context.Context) entity.StatsDocument {
	v, _, _ := s.sf.Do(documentKey, func() (interface{}, error) {
		return s.store.Read(ctx), nil
	})
	if doc, ok := v.(entity.StatsDocument); ok {
		return doc
	}
	return entity.NewStatsDocument()
}

// GetStats 不存在的 slug 返回零值，不会失败
func (s *Service) GetStats(ctx context.Context, slug string) entity.PostStats {
	return s.document(ctx).Get(slug)
}

// GetAll 返回整份文档的拷贝
func (s *Service) GetAll(ctx context.Context) entity.StatsDocument {
	return s.document(ctx).Clone()
}

// RecordAction 校验参数 → 读整份文档 → 修改 slug 对应记录 → 整份写回
// 写回失败时内存里的修改直接丢弃，返回 ErrPersistFailure
func (s *Service) RecordAction(ctx context.Context, slug string, rawAction string) (entity.PostStats, error) {
	// slug 和 action 都按原样比较，不做 trim：" a" 和 "a" 是两篇文章
	if slug == "" || rawAction == "" {
		return entity.PostStats{}, ErrMissingParameter
	}
	action, ok := entity.ParseAction(rawAction)
	if !ok {
		return entity.PostStats{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, rawAction)
	}

	var (
		updated entity.PostStats
		err     error
	)
	if s.atomic != nil {
		updated, err = s.atomic.Apply(ctx, slug, action)
	} else {
		updated, err = s.readModifyWrite(ctx, slug, action)
	}
	s.sf.Forget(documentKey)
	if err != nil {
		log.Printf("record %s for %s failed: %v", action, slug, err)
		return entity.PostStats{}, fmt.Errorf("%w: %v", ErrPersistFailure, err)
	}

	s.notify(ctx, updated, action)
	return updated, nil
}

// 不加锁：两个并发调用可能读到同一份旧文档，后写的覆盖先写的
func (s *Service) readModifyWrite(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	doc := s.store.Read(ctx).Clone()
	updated := action.Apply(doc.Get(slug))
	doc.Put(updated)
	if err := s.store.Write(ctx, doc); err != nil {
		return entity.PostStats{}, err
	}
	return updated, nil
}

func (s *Service) notify(ctx context.Context, st entity.PostStats, action entity.Action) {
	if len(s.notifiers) == 0 {
		return
	}
	evt := entity.StatsChangedEvent{
		EventID:   uuid.NewString(),
		Slug:      st.Slug,
		Action:    action,
		Views:     st.Views,
		Likes:     st.Likes,
		ChangedAt: s.now(),
	}
	for _, n := range s.notifiers {
		n.StatsChanged(ctx, evt)
	}
}
