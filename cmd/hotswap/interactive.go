package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/hotswap/host"
	"github.com/wippyai/hotswap/lifecycle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const refreshInterval = 100 * time.Millisecond

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Reload key.Binding
	Pause  key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reload, k.Pause, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Reload, k.Pause, k.Quit},
	}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "w"), key.WithHelp("↑/w", "move up")),
	Down:   key.NewBinding(key.WithKeys("down", "s"), key.WithHelp("↓/s", "move down")),
	Left:   key.NewBinding(key.WithKeys("left", "a"), key.WithHelp("←/a", "move left")),
	Right:  key.NewBinding(key.WithKeys("right", "d"), key.WithHelp("→/d", "move right")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// bindings maps keys to the actions they hold down.
var bindings = []struct {
	binding *key.Binding
	action  string
}{
	{&keys.Up, host.ActionMoveUp},
	{&keys.Down, host.ActionMoveDown},
	{&keys.Left, host.ActionMoveLeft},
	{&keys.Right, host.ActionMoveRight},
	{&keys.Reload, host.ActionRequestReload},
	{&keys.Pause, host.ActionTogglePause},
}

type refreshMsg time.Time

type interactiveModel struct {
	s     *session
	pane  *logPane
	help  help.Model
	stats stats
	width int
}

func newInteractiveModel(s *session, pane *logPane) *interactiveModel {
	h := help.New()
	h.ShowAll = true
	return &interactiveModel{s: s, pane: pane, help: h, stats: s.Stats()}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *interactiveModel) Init() tea.Cmd {
	return refresh()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		for _, b := range bindings {
			if key.Matches(msg, *b.binding) {
				m.s.Press(b.action)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case refreshMsg:
		m.stats = m.s.Stats()
		return m, refresh()
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	st := m.stats
	var b strings.Builder

	b.WriteString(titleStyle.Render("hotswap"))
	b.WriteString(" ")
	b.WriteString(m.s.cfg.Module.Path)
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	state := runningStyle.Render(st.State.String())
	if st.State.Paused() {
		state = errorStyle.Render(st.State.String())
	}
	if st.Paused {
		state += " (simulation paused)"
	}
	row("state", state)
	row("module", st.Module)
	row("ticks", fmt.Sprintf("%d", st.Ticks))
	row("reloads", fmt.Sprintf("%d", st.Reloads))
	row("enemies", fmt.Sprintf("%d", st.Enemies))
	if st.HasPlayer {
		row("player", fmt.Sprintf("(%.0f, %.0f)", st.Player.Pos.X, st.Player.Pos.Y))
	}
	if st.HasCamera {
		row("camera", fmt.Sprintf("(%.0f, %.0f)", st.Camera.Pos.X, st.Camera.Pos.Y))
	}
	if st.Last != nil {
		row("last", formatEvent(st.Last))
	}

	b.WriteString("\n")
	for _, line := range m.pane.Tail(8) {
		if m.width > 0 && len(line) > m.width {
			line = line[:m.width]
		}
		b.WriteString(logStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func formatEvent(ev *lifecycle.Event) string {
	s := fmt.Sprintf("%s %s in %s", ev.At.Format("15:04:05"), ev.Outcome, ev.Duration.Round(time.Microsecond))
	if ev.Restored {
		s += fmt.Sprintf(", restored %d bytes", ev.SnapshotBytes)
	}
	if ev.Err != nil {
		s += ": " + errorStyle.Render(ev.Err.Error())
	}
	return s
}

func runInteractive(ctx context.Context, s *session, pane *logPane) error {
	p := tea.NewProgram(newInteractiveModel(s, pane), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// logPane keeps the most recent log lines for the UI.
type logPane struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newLogPane(limit int) *logPane {
	return &logPane{limit: limit}
}

func (p *logPane) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		p.lines = append(p.lines, line)
	}
	if over := len(p.lines) - p.limit; over > 0 {
		p.lines = append(p.lines[:0], p.lines[over:]...)
	}
	return len(b), nil
}

// Tail returns up to n of the latest lines.
func (p *logPane) Tail(n int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > len(p.lines) {
		n = len(p.lines)
	}
	out := make([]string, n)
	copy(out, p.lines[len(p.lines)-n:])
	return out
}
