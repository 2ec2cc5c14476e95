package panel

import (
	"strconv"

	"github.com/lhdbsbz/toolsel/internal/api"
)

// NodeKind identifies what a render-tree node stands for.
type NodeKind string

const (
	KindPanel    NodeKind = "panel"
	KindStats    NodeKind = "stats"
	KindStat     NodeKind = "stat"
	KindPresets  NodeKind = "presets"
	KindOption   NodeKind = "option"
	KindToolbar  NodeKind = "toolbar"
	KindButton   NodeKind = "button"
	KindToolList NodeKind = "tools"
	KindGroup    NodeKind = "group"
	KindTool     NodeKind = "tool"
	KindMessage  NodeKind = "message"
)

// Node is one element of a render tree. It describes the view; the binding
// layer decides how to draw it. Interactive nodes carry an Action and, when
// rendered with a matching handler, a bound callback reachable via Activate.
type Node struct {
	Kind     NodeKind `json:"kind"`
	ID       string   `json:"id,omitempty"`
	Label    string   `json:"label,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Value    string   `json:"value,omitempty"`
	Class    string   `json:"class,omitempty"`
	Checked  bool     `json:"checked,omitempty"`
	Selected bool     `json:"selected,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
	Action   *Action  `json:"action,omitempty"`
	Children []*Node  `json:"children,omitempty"`

	onActivate func()
}

// Activate runs the node's bound callback. It reports false for inert nodes.
func (n *Node) Activate() bool {
	if n == nil || n.onActivate == nil || n.Disabled {
		return false
	}
	n.onActivate()
	return true
}

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node with the given ID.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// Interactive returns every node carrying an action, in tree order.
func (n *Node) Interactive() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Action != nil && !c.Disabled {
			out = append(out, c)
		}
		return true
	})
	return out
}

func interactive(kind NodeKind, id, label string, a Action, h Handlers) *Node {
	act := a
	return &Node{
		Kind:       kind,
		ID:         id,
		Label:      label,
		Action:     &act,
		onActivate: h.bind(a),
	}
}

// Render builds the tool list: one section per group in the given order, each
// with its enabled/total count, All/None buttons and one checkbox row per tool.
// It rebuilds everything on every call and depends only on its arguments.
func Render(groups api.Groups, h Handlers) *Node {
	list := &Node{Kind: KindToolList, ID: "tools"}
	for _, g := range groups {
		section := &Node{
			Kind:   KindGroup,
			ID:     "group:" + g.Name,
			Label:  g.Name,
			Detail: strconv.Itoa(g.EnabledCount()) + "/" + strconv.Itoa(len(g.Tools)),
			Class:  "server-section",
		}
		section.Children = append(section.Children,
			interactive(KindButton, "group:"+g.Name+":all", "All",
				Action{Kind: ActionToggleGroup, Group: g.Name, Enable: true}, h),
			interactive(KindButton, "group:"+g.Name+":none", "None",
				Action{Kind: ActionToggleGroup, Group: g.Name, Enable: false}, h),
		)
		for _, t := range g.Tools {
			row := interactive(KindTool, "tool:"+t.Name, t.Name,
				Action{Kind: ActionToggleTool, Tool: t.Name}, h)
			row.Detail = t.Description
			if row.Detail == "" {
				row.Detail = "No description"
			}
			row.Checked = t.Enabled
			row.Class = "tool-item"
			section.Children = append(section.Children, row)
		}
		list.Children = append(list.Children, section)
	}
	return list
}

// RenderStats builds the counters and the budget indicator.
func RenderStats(s Stats) *Node {
	budget := s.Budget()
	return &Node{
		Kind: KindStats,
		ID:   "stats",
		Children: []*Node{
			{Kind: KindStat, ID: "enabled-count", Label: "Enabled", Value: strconv.Itoa(s.Enabled)},
			{Kind: KindStat, ID: "total-count", Label: "Total", Value: strconv.Itoa(s.Total)},
			{Kind: KindStat, ID: "budget-status", Label: "Budget", Value: budget.String(), Class: budget.Class()},
		},
	}
}

// RenderPresets builds the preset selector. The sentinel is listed but cannot be chosen.
func RenderPresets(options []PresetOption, selected string, h Handlers) *Node {
	sel := &Node{Kind: KindPresets, ID: "preset-select", Value: selected}
	for _, o := range options {
		if o.IsSentinel() {
			sel.Children = append(sel.Children, &Node{
				Kind:     KindOption,
				ID:       "preset:",
				Label:    o.Label,
				Disabled: true,
				Selected: selected == "",
			})
			continue
		}
		opt := interactive(KindOption, "preset:"+o.Value, o.Label,
			Action{Kind: ActionSelectPreset, Preset: o.Value}, h)
		opt.Value = o.Value
		opt.Selected = o.Value == selected
		sel.Children = append(sel.Children, opt)
	}
	return sel
}

// View builds the whole panel from a snapshot.
func View(s Snapshot, h Handlers) *Node {
	toolbar := &Node{
		Kind: KindToolbar,
		ID:   "toolbar",
		Children: []*Node{
			interactive(KindButton, "load-preset-btn", "Load", Action{Kind: ActionLoadPreset}, h),
			interactive(KindButton, "select-none-btn", "Disable all", Action{Kind: ActionDisableAll}, h),
			interactive(KindButton, "refresh-btn", "Refresh", Action{Kind: ActionRefresh}, h),
		},
	}

	var tools *Node
	switch s.Status {
	case StatusLoading:
		tools = &Node{Kind: KindToolList, ID: "tools", Children: []*Node{
			{Kind: KindMessage, ID: "tools-message", Label: s.Message, Class: "loading"},
		}}
	case StatusError:
		tools = &Node{Kind: KindToolList, ID: "tools", Children: []*Node{
			{Kind: KindMessage, ID: "tools-message", Label: s.Message, Class: "loading error"},
		}}
	default:
		tools = Render(s.Groups, h)
	}

	return &Node{
		Kind: KindPanel,
		ID:   "panel",
		Children: []*Node{
			RenderStats(s.Stats),
			RenderPresets(s.Presets, s.SelectedPreset, h),
			toolbar,
			tools,
		},
	}
}

// View renders the panel's current state.
func (p *Panel) View(h Handlers) *Node {
	return View(p.Snapshot(), h)
}
