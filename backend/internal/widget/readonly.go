package widget

import (
	"context"
	"log"
	"sync"
)

// ReadOnly 列表页上的 tile，从不调用 recordAction
type ReadOnly struct {
	slug       string
	api        StatsAPI
	strategies []RefreshStrategy

	d display

	mu        sync.Mutex
	refreshCh chan struct{}
	cancel    context.CancelFunc
	stops     []func()
	done      chan struct{}
}

// NewReadOnly 一般同时传 PushRefresh 和 PullRefresh
func NewReadOnly(slug string, api StatsAPI, strategies ...RefreshStrategy) *ReadOnly {
	return &ReadOnly{slug: slug, api: api, strategies: strategies}
}

func (w *ReadOnly) Slug() string { return w.slug }

func (w *ReadOnly) Snapshot() Snapshot { return w.d.snapshot() }

func (w *ReadOnly) Render() string { return w.d.snapshot().Render() }

// Mount 启动拉取循环，排队第一次拉取并启动所有刷新策略，立即返回
func (w *ReadOnly) Mount(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	gen, ok := w.d.mount(w.slug, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	refreshCh := make(chan struct{}, 1)
	done := make(chan struct{})
	w.refreshCh, w.cancel, w.done = refreshCh, cancel, done

	go w.loop(ctx, gen, refreshCh, done)

	trigger := func() {
		select {
		case refreshCh <- struct{}{}:
		default:
			// 已有一次刷新在排队，合并
		}
	}
	trigger()
	w.stops = w.stops[:0]
	for _, s := range w.strategies {
		w.stops = append(w.stops, s.Start(w.slug, trigger))
	}
}

// Refresh 排队一次拉取，未挂载时忽略
func (w *ReadOnly) Refresh() {
	w.mu.Lock()
	ch := w.refreshCh
	w.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Unmount 停掉刷新策略和拉取循环，等循环退出后返回
func (w *ReadOnly) Unmount() {
	w.mu.Lock()
	if !w.d.unmount() {
		w.mu.Unlock()
		return
	}
	for _, stop := range w.stops {
		stop()
	}
	w.stops = nil
	w.cancel()
	done := w.done
	w.refreshCh, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()

	<-done
}

func (w *ReadOnly) loop(ctx context.Context, gen uint64, refreshCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshCh:
			w.fetch(ctx, gen)
		}
	}
}

func (w *ReadOnly) fetch(ctx context.Context, gen uint64) {
	st, err := w.api.GetStats(ctx, w.slug)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("fetch stats for %s failed: %v", w.slug, err)
		}
	}
	w.d.apply(gen, func(s *Snapshot) {
		if err == nil {
			setCounts(st)(s)
		}
		s.Loading = false
	})
}
