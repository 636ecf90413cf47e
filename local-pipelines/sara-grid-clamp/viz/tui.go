package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	hotPink  = lipgloss.Color("#FF06B7")
	darkGray = lipgloss.Color("#767676")
	green    = lipgloss.Color("#6A994E")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(hotPink)
	stepStyle     = lipgloss.NewStyle().Foreground(green)
	helpStyle     = lipgloss.NewStyle().Foreground(darkGray)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	imageStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(darkGray)
	terminalBadge = lipgloss.NewStyle().Background(hotPink).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1)
)

const helpText = "enter/→ next step • ← previous step • n/p next/previous episode • q quit"

type model struct {
	eps    episodes
	render renderer

	episode int
	step    int
	frames  []frame
	err     error

	width int
	art   string
}

func newModel(eps episodes, render renderer) model {
	m := model{
		eps:    eps,
		render: render,
		width:  80,
	}
	m.load(0)
	return m
}

// load switches to episode i, keeping the error for display if it cannot be read
func (m *model) load(i int) {
	m.episode = i
	m.step = 0
	m.frames, m.err = m.eps.Load(i)
	m.draw()
}

func (m *model) draw() {
	m.art = ""
	if m.render == nil || m.err != nil || len(m.frames) == 0 {
		return
	}
	// leave room for the border
	art, err := m.render(m.frames[m.step].Image, m.width-4)
	if err != nil {
		m.err = err
		return
	}
	m.art = art
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.draw()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter", "right", " ":
			if m.step+1 < len(m.frames) {
				m.step++
				m.draw()
			} else if m.episode+1 < m.eps.Len() {
				m.load(m.episode + 1)
			}
		case "left":
			if m.step > 0 {
				m.step--
				m.draw()
			}
		case "n":
			if m.episode+1 < m.eps.Len() {
				m.load(m.episode + 1)
			}
		case "p":
			if m.episode > 0 {
				m.load(m.episode - 1)
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	title := titleStyle.Render(fmt.Sprintf("%s (%d/%d)", m.eps.Name(m.episode), m.episode+1, m.eps.Len()))
	help := helpStyle.Render(helpText)

	if m.err != nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, errorStyle.Render(m.err.Error()), help)
	}
	if len(m.frames) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, "empty episode", help)
	}

	f := m.frames[m.step]
	status := stepStyle.Render(stepLine(m.step, f))
	if f.IsTerminal {
		status = lipgloss.JoinHorizontal(lipgloss.Center, status, " ", terminalBadge.Render("terminal"))
	}

	parts := []string{title}
	if m.art != "" {
		parts = append(parts, imageStyle.Render(m.art))
	}
	parts = append(parts, status, help)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
