package tui

import (
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/Zuo-Peng/session-digest/internal/render"
)

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}

// refreshPreview re-renders the active window into the viewport and scrolls
// back to the top.
func (m *model) refreshPreview() {
	if len(m.windows) == 0 {
		m.preview.SetContent("")
		return
	}
	// border takes one column on each side
	width := m.preview.Width - 2
	if width < 1 {
		width = 1
	}
	m.preview.SetContent(render.StyledWindow(m.windows[m.active], width))
	m.preview.GotoTop()
}
