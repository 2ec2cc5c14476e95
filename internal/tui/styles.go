package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lhdbsbz/toolsel/internal/panel"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	groupStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	enabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	budgetStyles = map[panel.BudgetStatus]lipgloss.Style{
		panel.BudgetOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		panel.BudgetWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		panel.BudgetOver:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func budgetStyle(b panel.BudgetStatus) lipgloss.Style {
	if s, ok := budgetStyles[b]; ok {
		return s
	}
	return dimStyle
}
