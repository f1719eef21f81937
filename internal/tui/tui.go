package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/session-digest/internal/parse"
	"github.com/Zuo-Peng/session-digest/internal/render"
	"github.com/Zuo-Peng/session-digest/internal/window"
)

// message types

type copiedMsg struct {
	title string
	err   error
}

// model

type model struct {
	source  string
	lines   int
	total   int
	windows []window.Window
	active  int
	preview viewport.Model
	status  string
	width   int
	height  int
	ready   bool
}

func initialModel(s *parse.Session, windows []window.Window) model {
	return model{
		source:  s.Meta.Path,
		lines:   s.Lines,
		total:   len(s.Records),
		windows: windows,
		preview: viewport.New(0, 0),
	}
}

// Run shows the digest windows of s and blocks until the user quits.
func Run(s *parse.Session, windows []window.Window) error {
	p := tea.NewProgram(initialModel(s, windows), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// copyWindowCmd copies the plain text of a window to the clipboard.
func copyWindowCmd(w window.Window) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{title: w.Title, err: clipboard.WriteAll(render.WindowText(w))}
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// tabs, title and status take three lines
		m.preview = newViewport(m.width, max(m.height-3, 3))
		m.ready = true
		m.refreshPreview()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = "copied " + strings.ToLower(shortTitle(msg.title))
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.setActive(m.active + 1)
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.setActive(m.active - 1)
			return m, nil
		case key.Matches(msg, keys.Copy):
			if len(m.windows) == 0 {
				return m, nil
			}
			return m, copyWindowCmd(m.windows[m.active])
		}
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m *model) setActive(i int) {
	n := len(m.windows)
	if n == 0 {
		return
	}
	m.active = ((i % n) + n) % n
	m.status = ""
	m.refreshPreview()
}

// View renders the UI.
func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := styleTitle.Render(fmt.Sprintf("%s  lines=%d messages=%d",
		filepath.Base(m.source), m.lines, m.total))

	var help []string
	for _, b := range keys.help() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	status := strings.Join(help, " · ")
	if m.status != "" {
		status = m.status + " · " + status
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.renderTabs(m.width),
		m.preview.View(),
		styleStatusBar.Render(status),
	)
}
