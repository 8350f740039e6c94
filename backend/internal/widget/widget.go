package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"post-stats-service/backend/internal/entity"
)

// StatsAPI 组件用到的那部分 HTTP 接口，*client.Client 实现了它
type StatsAPI interface {
	GetStats(ctx context.Context, slug string) (entity.PostStats, error)
	RecordAction(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error)
}

var ErrNotMounted = errors.New("widget is not mounted")

// Snapshot 组件当前展示的内容
type Snapshot struct {
	Slug    string
	Views   uint64
	Likes   uint64
	Liked   bool
	Loading bool
	Mounted bool
}

// Render 单行文本形式，加载中显示 loading...
func (s Snapshot) Render() string {
	if s.Loading {
		return "loading..."
	}
	heart := "♡"
	if s.Liked {
		heart = "♥"
	}
	return fmt.Sprintf("👁 %d  %s %d", s.Views, heart, s.Likes)
}

// display 保护快照。每次挂载/卸载 gen 加一，带着旧 gen 回来的结果属于已经卸载的那次挂载，丢弃
type display struct {
	mu   sync.Mutex
	snap Snapshot
	gen  uint64
}

func (d *display) mount(slug string, liked bool) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap.Mounted {
		return d.gen, false
	}
	d.gen++
	d.snap = Snapshot{Slug: slug, Liked: liked, Loading: true, Mounted: true}
	return d.gen, true
}

func (d *display) unmount() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.snap.Mounted {
		return false
	}
	d.gen++
	d.snap.Mounted = false
	return true
}

func (d *display) current() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen, d.snap.Mounted
}

// apply 只有发起请求的那次挂载还在时才执行 fn
func (d *display) apply(gen uint64, fn func(*Snapshot)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.snap.Mounted || d.gen != gen {
		return false
	}
	fn(&d.snap)
	return true
}

func (d *display) snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func setCounts(st entity.PostStats) func(*Snapshot) {
	return func(s *Snapshot) {
		s.Views = st.Views
		s.Likes = st.Likes
	}
}
