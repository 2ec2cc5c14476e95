package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lhdbsbz/toolsel/internal/panel"
)

const helpText = "↑/↓ move · space toggle · r refresh · p preset · l load · n disable all · q quit"

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tool Selector"))
	b.WriteString("\n\n")

	for _, section := range m.view.Children {
		switch section.Kind {
		case panel.KindStats:
			b.WriteString(m.renderStats(section))
		case panel.KindPresets:
			b.WriteString(m.renderPresets(section))
		case panel.KindToolbar:
			b.WriteString(m.renderButtons(section.Children))
		case panel.KindToolList:
			b.WriteString(m.renderTools(section))
		}
		b.WriteString("\n")
	}

	if s := m.statusLine(); s != "" {
		b.WriteString("\n" + s + "\n")
	}
	b.WriteString("\n" + dimStyle.Render(helpText))

	out := b.String()
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

func (m *Model) mark(n *panel.Node, s string) string {
	if f := m.focused(); f != nil && f == n {
		return cursorStyle.Render(s)
	}
	return s
}

func (m *Model) renderStats(n *panel.Node) string {
	parts := make([]string, 0, len(n.Children))
	for _, stat := range n.Children {
		value := stat.Value
		if stat.ID == "budget-status" {
			value = budgetStyle(m.snap.Stats.Budget()).Render(value)
		}
		parts = append(parts, dimStyle.Render(stat.Label+":")+" "+value)
	}
	return strings.Join(parts, "   ") + "\n"
}

func (m *Model) renderPresets(n *panel.Node) string {
	parts := make([]string, 0, len(n.Children))
	for _, opt := range n.Children {
		label := opt.Label
		if opt.Selected {
			label = "● " + label
		} else {
			label = "○ " + label
		}
		if opt.Disabled {
			label = dimStyle.Render(label)
		}
		parts = append(parts, m.mark(opt, label))
	}
	return dimStyle.Render("Preset: ") + strings.Join(parts, "  ") + "\n"
}

func (m *Model) renderButtons(buttons []*panel.Node) string {
	parts := make([]string, 0, len(buttons))
	for _, btn := range buttons {
		if btn.Kind != panel.KindButton {
			continue
		}
		parts = append(parts, m.mark(btn, "["+btn.Label+"]"))
	}
	return strings.Join(parts, " ") + "\n"
}

func (m *Model) renderTools(list *panel.Node) string {
	var b strings.Builder
	if len(list.Children) > 0 && list.Children[0].Kind == panel.KindMessage {
		msg := list.Children[0]
		if m.snap.Status == panel.StatusError {
			return errorStyle.Render(msg.Label) + "\n"
		}
		return dimStyle.Render(msg.Label) + "\n"
	}
	if len(list.Children) == 0 {
		return dimStyle.Render("No tools") + "\n"
	}

	b.WriteString(dimStyle.Render(plural(len(list.Children), "group")) + "\n")
	for _, group := range list.Children {
		b.WriteString("\n" + groupStyle.Render(group.Label) + " " + dimStyle.Render(group.Detail) + "  ")
		b.WriteString(m.renderButtons(group.Children))
		for _, tool := range group.Children {
			if tool.Kind != panel.KindTool {
				continue
			}
			box := "[ ]"
			if tool.Checked {
				box = enabledStyle.Render("[x]")
			}
			row := "  " + box + " " + m.mark(tool, tool.Label) + "  " + dimStyle.Render(tool.Detail)
			b.WriteString(row + "\n")
		}
	}
	return b.String()
}
