// Package panel keeps a client-side view of the gateway's tools, presets and
// budget, and keeps it consistent with the gateway after every mutation.
//
// Every operation is a sequence of round trips followed by a state update.
// State is replaced wholesale on each successful tool load; the only partial
// update is the single-checkbox patch applied by ToggleTool right before its
// confirming reload. Concurrent loads are not de-duplicated: whichever
// response lands last wins.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lhdbsbz/toolsel/internal/api"
	"github.com/lhdbsbz/toolsel/internal/observability"
)

// API is the slice of the gateway client the panel depends on.
type API interface {
	ListTools(ctx context.Context) (*api.ToolsResponse, error)
	ListPresets(ctx context.Context) ([]api.Preset, error)
	LoadPreset(ctx context.Context, name string) error
	UpdateTools(ctx context.Context, tools []string) error
	ToggleTool(ctx context.Context, tool string) (bool, error)
	CurrentTools(ctx context.Context) ([]string, error)
}

// Status is the transient state of the tool list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const (
	LoadingMessage = "Loading tools..."
	NoPresetLabel  = "Select preset..."
)

// PresetOption is one entry of the preset selector. The sentinel has an empty Value.
type PresetOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// IsSentinel reports whether this is the "no selection" placeholder.
func (o PresetOption) IsSentinel() bool { return o.Value == "" }

var noPreset = PresetOption{Label: NoPresetLabel}

// Snapshot is a consistent, caller-owned copy of the panel state.
type Snapshot struct {
	Groups         api.Groups     `json:"groups"`
	Stats          Stats          `json:"stats"`
	Budget         BudgetStatus   `json:"budget"`
	Presets        []PresetOption `json:"presets"`
	SelectedPreset string         `json:"selectedPreset"`
	Status         Status         `json:"status"`
	Message        string         `json:"message,omitempty"`
}

// Panel is the tool selector. Construct one with New; all state is private.
type Panel struct {
	api    API
	logger *slog.Logger

	mu        sync.Mutex
	groups    api.Groups
	stats     Stats
	presets   []PresetOption
	selected  string
	status    Status
	message   string
	listeners []func(Snapshot)

	// notifyMu keeps listener delivery in mutation order.
	notifyMu sync.Mutex
}

type Option func(*Panel)

func WithLogger(l *slog.Logger) Option {
	return func(p *Panel) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(a API, opts ...Option) *Panel {
	p := &Panel{
		api:     a,
		logger:  slog.Default(),
		presets: []PresetOption{noPreset},
		status:  StatusLoading,
		message: LoadingMessage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs synchronously and must not call mutating Panel methods itself;
// hand the work to another goroutine instead.
func (p *Panel) Subscribe(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Panel) snapshotLocked() Snapshot {
	presets := make([]PresetOption, len(p.presets))
	copy(presets, p.presets)
	return Snapshot{
		Groups:         p.groups.Clone(),
		Stats:          p.stats,
		Budget:         p.stats.Budget(),
		Presets:        presets,
		SelectedPreset: p.selected,
		Status:         p.status,
		Message:        p.message,
	}
}

// update applies fn under the state lock and then notifies listeners.
// notifyMu is taken before mu so deliveries follow mutation order, and mu is
// released before any listener runs: a listener may block on a reader that
// itself calls Snapshot.
func (p *Panel) update(fn func()) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	fn()
	snap := p.snapshotLocked()
	listeners := make([]func(Snapshot), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Init loads tools and presets concurrently and waits for both.
func (p *Panel) Init(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = p.LoadTools(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = p.LoadPresets(ctx)
	}()
	wg.Wait()
}

// LoadTools fetches the full inventory and replaces the snapshot.
// On failure the tool list shows the error and the counters keep their last values.
func (p *Panel) LoadTools(ctx context.Context) error {
	p.update(func() {
		p.status = StatusLoading
		p.message = LoadingMessage
	})

	resp, err := p.api.ListTools(ctx)
	observability.RecordPanelOp("load_tools", err)
	if err != nil {
		p.update(func() {
			p.status = StatusError
			p.message = "Error: " + err.Error()
		})
		p.logger.Warn("load tools failed", "error", err)
		return fmt.Errorf("load tools: %w", err)
	}

	p.update(func() {
		p.groups = resp.Servers
		p.stats = Stats{Enabled: resp.EnabledCount, Total: resp.Total}
		p.status = StatusIdle
		p.message = ""
	})
	return nil
}

// LoadPresets repopulates the preset selector, sentinel first.
// Failures are logged and leave the previous options in place.
func (p *Panel) LoadPresets(ctx context.Context) error {
	presets, err := p.api.ListPresets(ctx)
	observability.RecordPanelOp("load_presets", err)
	if err != nil {
		p.logger.Warn("failed to load presets", "error", err)
		return fmt.Errorf("load presets: %w", err)
	}
	if presets == nil {
		return nil
	}

	opts := make([]PresetOption, 0, len(presets)+1)
	opts = append(opts, noPreset)
	for _, pr := range presets {
		opts = append(opts, PresetOption{
			Value: pr.Name,
			Label: fmt.Sprintf("%s (%d tools)", pr.Name, pr.ToolCount),
		})
	}
	p.update(func() {
		p.presets = opts
		p.selected = ""
	})
	return nil
}

// SelectPreset changes the selected preset. An empty name selects the sentinel.
func (p *Panel) SelectPreset(name string) {
	p.update(func() { p.selected = name })
}

// ApplySelectedPreset loads the selected preset on the gateway and reloads tools.
// With the sentinel selected it does nothing and issues no request.
func (p *Panel) ApplySelectedPreset(ctx context.Context) error {
	p.mu.Lock()
	name := p.selected
	p.mu.Unlock()
	if name == "" {
		return nil
	}

	err := p.api.LoadPreset(ctx, name)
	observability.RecordPanelOp("load_preset", err)
	if err != nil {
		p.logger.Warn("failed to load preset", "preset", name, "error", err)
		return fmt.Errorf("load preset %s: %w", name, err)
	}
	return p.LoadTools(ctx)
}

// DisableAll replaces the gateway's enabled set with the empty set.
func (p *Panel) DisableAll(ctx context.Context) error {
	err := p.api.UpdateTools(ctx, []string{})
	observability.RecordPanelOp("disable_all", err)
	if err != nil {
		p.logger.Warn("failed to disable all", "error", err)
		return fmt.Errorf("disable all: %w", err)
	}
	return p.LoadTools(ctx)
}

// ToggleTool flips one tool, patches its checkbox with the gateway's answer,
// then reloads everything. The reload is authoritative, so the view renders
// twice and converges on whatever the gateway reports.
func (p *Panel) ToggleTool(ctx context.Context, tool string) error {
	enabled, err := p.api.ToggleTool(ctx, tool)
	observability.RecordPanelOp("toggle_tool", err)
	if err != nil {
		p.logger.Warn("failed to toggle tool", "tool", tool, "error", err)
		return fmt.Errorf("toggle %s: %w", tool, err)
	}

	p.update(func() { p.patchTool(tool, enabled) })
	return p.LoadTools(ctx)
}

// patchTool sets the checkbox of the first tool with this name.
func (p *Panel) patchTool(tool string, enabled bool) {
	for gi := range p.groups {
		for ti := range p.groups[gi].Tools {
			if p.groups[gi].Tools[ti].Name == tool {
				p.groups[gi].Tools[ti].Enabled = enabled
				return
			}
		}
	}
}

// ToggleGroup enables or disables every tool of a group.
//
// It reads the gateway's current enabled set, adds or removes the group's tools
// and writes the result back. The read and the write are separate requests, so
// a change made by another client in between is overwritten. The gateway offers
// no batch add/remove call to close that window.
func (p *Panel) ToggleGroup(ctx context.Context, group string, enable bool) error {
	names := p.groupToolNames(group)

	current, err := p.api.CurrentTools(ctx)
	if err != nil {
		observability.RecordPanelOp("toggle_group", err)
		p.logger.Warn("failed to read enabled tools", "group", group, "error", err)
		return fmt.Errorf("toggle group %s: %w", group, err)
	}

	next := DeriveEnabledSet(current, names, enable)
	err = p.api.UpdateTools(ctx, next)
	observability.RecordPanelOp("toggle_group", err)
	if err != nil {
		p.logger.Warn("failed to toggle group", "group", group, "enable", enable, "error", err)
		return fmt.Errorf("toggle group %s: %w", group, err)
	}
	return p.LoadTools(ctx)
}

func (p *Panel) groupToolNames(group string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.groups.Find(group)
	if !ok {
		return nil
	}
	names := make([]string, len(g.Tools))
	for i, t := range g.Tools {
		names[i] = t.Name
	}
	return names
}

// DeriveEnabledSet adds (enable) or removes names from current.
// The result is duplicate-free: current's order first, then new names in order.
func DeriveEnabledSet(current, names []string, enable bool) []string {
	seen := make(map[string]bool, len(current)+len(names))
	out := make([]string, 0, len(current)+len(names))

	if enable {
		for _, list := range [][]string{current, names} {
			for _, n := range list {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		return out
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	for _, n := range current {
		if drop[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
