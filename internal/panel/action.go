package panel

import (
	"context"
	"fmt"
)

// ActionKind names a user interaction a binding layer can send back to the panel.
type ActionKind string

const (
	ActionRefresh      ActionKind = "refresh"
	ActionToggleTool   ActionKind = "toggle_tool"
	ActionToggleGroup  ActionKind = "toggle_group"
	ActionSelectPreset ActionKind = "select_preset"
	ActionLoadPreset   ActionKind = "load_preset"
	ActionDisableAll   ActionKind = "disable_all"
)

// Action is the serializable form of an interaction. Render trees carry these
// instead of callables so any UI layer can send them back through Dispatch.
type Action struct {
	Kind   ActionKind `json:"kind" form:"kind"`
	Tool   string     `json:"tool,omitempty" form:"tool"`
	Group  string     `json:"group,omitempty" form:"group"`
	Enable bool       `json:"enable,omitempty" form:"enable"`
	Preset string     `json:"preset,omitempty" form:"preset"`
}

// Handlers are the callbacks a render tree binds to its interactive nodes.
// Nil handlers leave the corresponding nodes inert.
type Handlers struct {
	Refresh      func()
	ToggleTool   func(tool string)
	ToggleGroup  func(group string, enable bool)
	SelectPreset func(name string)
	LoadPreset   func()
	DisableAll   func()
}

// bind returns the callback for a, or nil.
func (h Handlers) bind(a Action) func() {
	switch a.Kind {
	case ActionRefresh:
		if h.Refresh != nil {
			return h.Refresh
		}
	case ActionToggleTool:
		if h.ToggleTool != nil {
			return func() { h.ToggleTool(a.Tool) }
		}
	case ActionToggleGroup:
		if h.ToggleGroup != nil {
			return func() { h.ToggleGroup(a.Group, a.Enable) }
		}
	case ActionSelectPreset:
		if h.SelectPreset != nil {
			return func() { h.SelectPreset(a.Preset) }
		}
	case ActionLoadPreset:
		if h.LoadPreset != nil {
			return h.LoadPreset
		}
	case ActionDisableAll:
		if h.DisableAll != nil {
			return h.DisableAll
		}
	}
	return nil
}

// Dispatch runs the operation an action describes.
// A load_preset action naming a preset selects it first.
func (p *Panel) Dispatch(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionRefresh:
		return p.LoadTools(ctx)
	case ActionToggleTool:
		return p.ToggleTool(ctx, a.Tool)
	case ActionToggleGroup:
		return p.ToggleGroup(ctx, a.Group, a.Enable)
	case ActionSelectPreset:
		p.SelectPreset(a.Preset)
		return nil
	case ActionLoadPreset:
		if a.Preset != "" {
			p.SelectPreset(a.Preset)
		}
		return p.ApplySelectedPreset(ctx)
	case ActionDisableAll:
		return p.DisableAll(ctx)
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

// Handlers returns callbacks bound to this panel's operations. Each callback
// blocks until its round trips finish; failures are already logged by the panel.
func (p *Panel) Handlers(ctx context.Context) Handlers {
	return Handlers{
		Refresh:      func() { _ = p.LoadTools(ctx) },
		ToggleTool:   func(tool string) { _ = p.ToggleTool(ctx, tool) },
		ToggleGroup:  func(group string, enable bool) { _ = p.ToggleGroup(ctx, group, enable) },
		SelectPreset: p.SelectPreset,
		LoadPreset:   func() { _ = p.ApplySelectedPreset(ctx) },
		DisableAll:   func() { _ = p.DisableAll(ctx) },
	}
}
