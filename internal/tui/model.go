// Package tui is a terminal front end for the tool selector.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lhdbsbz/toolsel/internal/panel"
)

// SnapshotMsg delivers a panel state change to the program.
type SnapshotMsg panel.Snapshot

// opDoneMsg reports the end of a panel operation started from the UI.
type opDoneMsg struct {
	op  string
	err error
}

// Run starts the terminal UI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, p *panel.Panel) error {
	_, err := run(ctx, p, tea.WithAltScreen())
	return err
}

func run(ctx context.Context, p *panel.Panel, opts ...tea.ProgramOption) (*Model, error) {
	m := New(ctx, p)
	prog := tea.NewProgram(m, append(opts, tea.WithContext(ctx))...)

	fwd := newSnapshotForwarder()
	p.Subscribe(fwd.submit)
	done := make(chan struct{})
	go fwd.run(done, func(s panel.Snapshot) { prog.Send(SnapshotMsg(s)) })
	defer close(done)

	final, err := prog.Run()
	if fm, ok := final.(*Model); ok {
		m = fm
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return m, nil
	}
	return m, err
}

// snapshotForwarder hands panel snapshots to the program from its own
// goroutine, so the panel never waits on the event loop. Only the newest
// undelivered snapshot is kept.
type snapshotForwarder struct {
	mu     sync.Mutex
	latest panel.Snapshot
	ready  bool
	wake   chan struct{}
}

func newSnapshotForwarder() *snapshotForwarder {
	return &snapshotForwarder{wake: make(chan struct{}, 1)}
}

func (f *snapshotForwarder) submit(s panel.Snapshot) {
	f.mu.Lock()
	f.latest = s
	f.ready = true
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *snapshotForwarder) run(done <-chan struct{}, send func(panel.Snapshot)) {
	for {
		select {
		case <-done:
			return
		case <-f.wake:
		}
		f.mu.Lock()
		s, ok := f.latest, f.ready
		f.ready = false
		f.mu.Unlock()
		if ok {
			send(s)
		}
	}
}

// Model is the bubbletea model over the panel's render tree.
//
// Panel operations never run inside Update: they are returned as commands,
// so the event loop never waits on the gateway.
type Model struct {
	ctx   context.Context
	panel *panel.Panel

	snap    panel.Snapshot
	view    *panel.Node
	focus   []*panel.Node
	cursor  int
	focusID string

	pending tea.Cmd
	busy    int
	lastErr string
	width   int
}

func New(ctx context.Context, p *panel.Panel) *Model {
	m := &Model{ctx: ctx, panel: p}
	m.setSnapshot(p.Snapshot())
	return m
}

func (m *Model) Init() tea.Cmd {
	m.busy++
	return func() tea.Msg {
		m.panel.Init(m.ctx)
		return opDoneMsg{op: "init"}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case SnapshotMsg:
		m.setSnapshot(panel.Snapshot(msg))
	case opDoneMsg:
		if m.busy > 0 {
			m.busy--
		}
		m.lastErr = ""
		if msg.err != nil && msg.op != "refresh" {
			m.lastErr = msg.err.Error()
		}
		m.setSnapshot(m.panel.Snapshot())
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch strings.ToLower(msg.String()) {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k", "shift+tab":
		m.move(-1)
	case "down", "j", "tab":
		m.move(1)
	case " ", "space", "enter":
		if n := m.focused(); n != nil {
			m.pending = nil
			n.Activate()
			cmd := m.pending
			m.pending = nil
			return cmd
		}
	case "r":
		return m.run("refresh", m.panel.LoadTools)
	case "n":
		return m.run("disable_all", m.panel.DisableAll)
	case "l":
		return m.run("load_preset", m.panel.ApplySelectedPreset)
	case "p":
		next := nextPreset(m.snap.Presets, m.snap.SelectedPreset)
		return m.run("select_preset", func(context.Context) error {
			m.panel.SelectPreset(next)
			return nil
		})
	}
	return nil
}

// run wraps a panel operation as a command.
func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// handlers binds render-tree nodes to commands queued on the model.
func (m *Model) handlers() panel.Handlers {
	queue := func(op string, fn func(context.Context) error) {
		m.pending = m.run(op, fn)
	}
	return panel.Handlers{
		Refresh: func() { queue("refresh", m.panel.LoadTools) },
		ToggleTool: func(tool string) {
			queue("toggle_tool", func(ctx context.Context) error { return m.panel.ToggleTool(ctx, tool) })
		},
		ToggleGroup: func(group string, enable bool) {
			queue("toggle_group", func(ctx context.Context) error { return m.panel.ToggleGroup(ctx, group, enable) })
		},
		SelectPreset: func(name string) {
			queue("select_preset", func(context.Context) error {
				m.panel.SelectPreset(name)
				return nil
			})
		},
		LoadPreset: func() { queue("load_preset", m.panel.ApplySelectedPreset) },
		DisableAll: func() { queue("disable_all", m.panel.DisableAll) },
	}
}

// setSnapshot rebuilds the view and keeps the cursor on the same node when it still exists.
func (m *Model) setSnapshot(s panel.Snapshot) {
	m.snap = s
	m.view = panel.View(s, m.handlers())
	m.focus = m.view.Interactive()

	m.cursor = 0
	for i, n := range m.focus {
		if n.ID == m.focusID {
			m.cursor = i
			break
		}
	}
	if n := m.focused(); n != nil {
		m.focusID = n.ID
	}
}

func (m *Model) focused() *panel.Node {
	if m.cursor < 0 || m.cursor >= len(m.focus) {
		return nil
	}
	return m.focus[m.cursor]
}

func (m *Model) move(delta int) {
	if len(m.focus) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.focus)) % len(m.focus)
	m.focusID = m.focus[m.cursor].ID
}

// nextPreset cycles through the real presets, skipping the sentinel.
func nextPreset(opts []panel.PresetOption, selected string) string {
	var names []string
	for _, o := range opts {
		if !o.IsSentinel() {
			names = append(names, o.Value)
		}
	}
	if len(names) == 0 {
		return ""
	}
	for i, n := range names {
		if n == selected {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

// Snapshot returns the state the model last rendered.
func (m *Model) Snapshot() panel.Snapshot { return m.snap }

// FocusID returns the ID of the node under the cursor.
func (m *Model) FocusID() string { return m.focusID }

func (m *Model) statusLine() string {
	switch {
	case m.lastErr != "":
		return errorStyle.Render("Error: " + m.lastErr)
	case m.busy > 0:
		return dimStyle.Render("working...")
	default:
		return ""
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
