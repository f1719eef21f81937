package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderTabs renders one tab per window with its record count; the active
// window is highlighted.
func (m model) renderTabs(width int) string {
	var tabs []string
	for i, w := range m.windows {
		label := fmt.Sprintf("%s (%d)", shortTitle(w.Title), len(w.Records))
		if i == m.active {
			tabs = append(tabs, styleTabActive.Render(label))
		} else {
			tabs = append(tabs, styleTabInactive.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return lipgloss.NewStyle().MaxWidth(width).Render(row)
}

// shortTitle keeps the part of a window title before " OF ".
func shortTitle(title string) string {
	if i := strings.Index(title, " OF "); i > 0 {
		return title[:i]
	}
	return title
}
