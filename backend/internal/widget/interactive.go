package widget

import (
	"context"
	"log"
	"sync"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/eventbus"
	"post-stats-service/backend/internal/likestate"
)

// Interactive 详情页上的计数：挂载时记一次浏览，可以点赞/取消点赞
type Interactive struct {
	slug  string
	api   StatsAPI
	likes likestate.Store
	bus   *eventbus.Bus

	d display
	// 同一个组件的点赞请求按顺序发出
	toggleMu sync.Mutex
}

func NewInteractive(slug string, api StatsAPI, likes likestate.Store, bus *eventbus.Bus) *Interactive {
	return &Interactive{slug: slug, api: api, likes: likes, bus: bus}
}

func (w *Interactive) Slug() string { return w.slug }

func (w *Interactive) Snapshot() Snapshot { return w.d.snapshot() }

func (w *Interactive) Render() string { return w.d.snapshot().Render() }

// Mount 读点赞状态和计数，然后恰好记一次浏览
// 失败只记日志，保留当前展示；已挂载时重复调用什么都不做
func (w *Interactive) Mount(ctx context.Context) {
	gen, ok := w.d.mount(w.slug, w.likes.HasLiked(w.slug))
	if !ok {
		return
	}

	st, err := w.api.GetStats(ctx, w.slug)
	if err != nil {
		log.Printf("fetch stats for %s failed: %v", w.slug, err)
	}
	w.d.apply(gen, func(s *Snapshot) {
		if err == nil {
			setCounts(st)(s)
		}
		s.Loading = false
	})

	st, err = w.api.RecordAction(ctx, w.slug, entity.ActionView)
	if err != nil {
		log.Printf("record view for %s failed: %v", w.slug, err)
		return
	}
	w.d.apply(gen, setCounts(st))
	w.bus.Publish(w.slug)
}

// ToggleLike 按本地点赞状态发 like 或 unlike，失败时什么都不改
// 卸载后才成功的请求仍然更新点赞记录并发布到 bus（服务端已经变了），但不再改展示
func (w *Interactive) ToggleLike(ctx context.Context) error {
	w.toggleMu.Lock()
	defer w.toggleMu.Unlock()

	gen, mounted := w.d.current()
	if !mounted {
		return ErrNotMounted
	}

	liked := w.likes.HasLiked(w.slug)
	action := entity.ActionLike
	if liked {
		action = entity.ActionUnlike
	}

	st, err := w.api.RecordAction(ctx, w.slug, action)
	if err != nil {
		log.Printf("%s %s failed: %v", action, w.slug, err)
		return err
	}
	if err := w.likes.SetLiked(w.slug, !liked); err != nil {
		log.Printf("save like state for %s failed: %v", w.slug, err)
	}
	w.d.apply(gen, func(s *Snapshot) {
		setCounts(st)(s)
		s.Liked = !liked
		s.Loading = false
	})
	w.bus.Publish(w.slug)
	return nil
}

func (w *Interactive) Unmount() {
	w.d.unmount()
}
