package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/eventbus"
	"post-stats-service/backend/internal/likestate"
	"post-stats-service/backend/internal/widget"
)

type memAPI struct {
	mu    sync.Mutex
	posts map[string]entity.PostStats
	fail  error
}

func (a *memAPI) GetStats(ctx context.Context, slug string) (entity.PostStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.posts[slug], nil
}

func (a *memAPI) RecordAction(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return entity.PostStats{}, a.fail
	}
	st := action.Apply(a.posts[slug])
	a.posts[slug] = st
	return st, nil
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel() (Model, *memAPI) {
	api := &memAPI{posts: map[string]entity.PostStats{}}
	bus := eventbus.New()
	m := New(Options{
		Detail: widget.NewInteractive("hello-world", api, likestate.NewMemoryStore(), bus),
	})
	return m, api
}

func TestModel_MountAndLike(t *testing.T) {
	m, _ := newTestModel()
	defer m.Unmount()

	next, _ := m.Update(mountCmd(m.ctx, m.detail, m.tiles)())
	m = next.(Model)
	if view := m.View(); !strings.Contains(view, "hello-world") || !strings.Contains(view, "👁 1  ♡ 0") {
		t.Fatalf("view after mount:\n%s", view)
	}

	next, cmd := m.Update(keyMsg('l'))
	if cmd == nil {
		t.Fatal("l should issue a toggle command")
	}
	next, _ = next.(Model).Update(cmd())
	m = next.(Model)
	if !strings.Contains(m.View(), "♥ 1") {
		t.Fatalf("view after like:\n%s", m.View())
	}
}

func TestModel_ToggleErrorKeepsCountsWithoutBanner(t *testing.T) {
	m, api := newTestModel()
	defer m.Unmount()
	next, _ := m.Update(mountCmd(m.ctx, m.detail, m.tiles)())
	m = next.(Model)

	api.mu.Lock()
	api.fail = errors.New("stats fetch failed")
	api.mu.Unlock()

	_, cmd := m.Update(keyMsg('l'))
	next, _ = m.Update(cmd())
	m = next.(Model)
	if view := m.View(); strings.Contains(view, "stats fetch failed") || !strings.Contains(view, "👁 1  ♡ 0") {
		t.Fatalf("view after failed like:\n%s", m.View())
	}
}

func TestModel_QuitAndHelp(t *testing.T) {
	m, _ := newTestModel()

	next, _ := m.Update(keyMsg('h'))
	m = next.(Model)
	if !strings.Contains(m.View(), "Like / unlike") {
		t.Fatalf("help view:\n%s", m.View())
	}
	next, _ = m.Update(keyMsg('x'))
	m = next.(Model)
	if m.showHelp {
		t.Fatal("any key should close help")
	}

	_, cmd := m.Update(keyMsg('q'))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should return tea.Quit")
	}
}
