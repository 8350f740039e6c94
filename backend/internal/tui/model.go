// Package tui 在终端里挂载统计组件：当前文章一个可交互计数，列表里每篇文章一个只读 tile
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"post-stats-service/backend/internal/widget"
)

type Options struct {
	Context context.Context
	Detail  *widget.Interactive
	Tiles   []*widget.ReadOnly
	// RenderTick 多久重新读一次快照刷新界面
	RenderTick time.Duration
}

// Model bubbletea 根模型
type Model struct {
	ctx        context.Context
	detail     *widget.Interactive
	tiles      []*widget.ReadOnly
	renderTick time.Duration

	keys     keyMap
	styles   styles
	showHelp bool

	detailSnap widget.Snapshot
	tileSnaps  []widget.Snapshot
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.RenderTick
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return Model{
		ctx:        ctx,
		detail:     opts.Detail,
		tiles:      opts.Tiles,
		renderTick: tick,
		keys:       DefaultKeyMap(),
		styles:     defaultStyles(),
		tileSnaps:  make([]widget.Snapshot, len(opts.Tiles)),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(mountCmd(m.ctx, m.detail, m.tiles), tickCmd(m.renderTick))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.syncSnapshots()
		return m, tickCmd(m.renderTick)

	case mountedMsg, toggledMsg:
		m.syncSnapshots()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Like):
		if m.detail == nil {
			return m, nil
		}
		return m, toggleCmd(m.ctx, m.detail)
	case key.Matches(msg, m.keys.Refresh):
		for _, t := range m.tiles {
			t.Refresh()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) syncSnapshots() {
	if m.detail != nil {
		m.detailSnap = m.detail.Snapshot()
	}
	for i, t := range m.tiles {
		m.tileSnaps[i] = t.Snapshot()
	}
}

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("post stats"))
	b.WriteString("\n\n")

	if m.detail != nil {
		b.WriteString(m.styles.Detail.Render(m.renderSnapshot(m.detail.Slug(), m.detailSnap)))
		b.WriteString("\n")
	}

	tiles := make([]string, 0, len(m.tiles))
	for i, t := range m.tiles {
		tiles = append(tiles, m.styles.Tile.Render(m.renderSnapshot(t.Slug(), m.tileSnaps[i])))
	}
	if len(tiles) > 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Muted.Render("l like  r refresh  h help  q quit"))
	return b.String()
}

func (m Model) renderSnapshot(slug string, s widget.Snapshot) string {
	line := s.Render()
	if s.Liked && !s.Loading {
		line = m.styles.Liked.Render(line)
	}
	return m.styles.Slug.Render(slug) + "\n" + line
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("keys"))
	b.WriteString("\n")
	for _, k := range m.keys.bindings() {
		h := k.Help()
		b.WriteString("  " + h.Key + "  " + h.Desc + "\n")
	}
	b.WriteString(m.styles.Muted.Render("any key to close"))
	return b.String()
}

// 消息

type tickMsg time.Time

type mountedMsg struct{}

type toggledMsg struct{}

// 命令

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func mountCmd(ctx context.Context, detail *widget.Interactive, tiles []*widget.ReadOnly) tea.Cmd {
	return func() tea.Msg {
		// 先挂 tile，detail 记录的 view 才能通过 bus 通知到它们
		for _, t := range tiles {
			t.Mount(ctx)
		}
		if detail != nil {
			detail.Mount(ctx)
		}
		return mountedMsg{}
	}
}

func toggleCmd(ctx context.Context, detail *widget.Interactive) tea.Cmd {
	return func() tea.Msg {
		// 失败在 widget 里记日志，界面保持原来的计数，不弹错误
		_ = detail.ToggleLike(ctx)
		return toggledMsg{}
	}
}

// Unmount 卸载所有组件
func (m Model) Unmount() {
	if m.detail != nil {
		m.detail.Unmount()
	}
	for _, t := range m.tiles {
		t.Unmount()
	}
}

// Run 启动 bubbletea，退出时卸载组件
func Run(opts Options) error {
	m := New(opts)
	defer m.Unmount()
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
