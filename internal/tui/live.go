// Package tui shows scan progress live in the terminal and renders
// the finished sky map in place.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/muflux/internal/fluxmeter"
	"github.com/san-kum/muflux/internal/geo"
	"github.com/san-kum/muflux/internal/render"
	"github.com/san-kum/muflux/internal/scan"
)

const barWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type progressMsg struct {
	done  int
	total int
}

type doneMsg struct {
	result *scan.Map
	err    error
}

// Model is the live scan view: a progress bar while workers run, the
// rendered sky map once they finish.
type Model struct {
	label   string
	theme   render.Theme
	start   time.Time
	done    int
	total   int
	result  *scan.Map
	err     error
	stopped bool
}

func NewModel(label string, theme render.Theme) Model {
	return Model{label: label, theme: theme, start: time.Now()}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopped = true
			return m, tea.Quit
		}
	case progressMsg:
		m.done = msg.done
		m.total = msg.total
	case doneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.label)) + "\n")

	if m.result != nil {
		s.WriteString(render.SkyMap(m.result, m.theme))
		return s.String()
	}
	if m.err != nil {
		s.WriteString(labelStyle.Render("Error") + valueStyle.Render(m.err.Error()) + "\n")
		return s.String()
	}

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	filled := int(frac * barWidth)
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"

	s.WriteString(labelStyle.Render("Progress") + barStyle.Render(bar) +
		valueStyle.Render(fmt.Sprintf(" %3.0f%%", frac*100)) + "\n")
	s.WriteString(labelStyle.Render("Cells") +
		valueStyle.Render(fmt.Sprintf("%d / %d", m.done, m.total)) + "\n")
	s.WriteString(labelStyle.Render("Elapsed") +
		valueStyle.Render(time.Since(m.start).Truncate(time.Millisecond).String()) + "\n")
	s.WriteString(helpStyle.Render("q: abort"))
	return s.String()
}

// Run scans the grid while showing live progress, and leaves the
// finished sky map on screen. The returned map is nil if the user
// aborted.
func Run(scanner *scan.Scanner, label string, position geo.Position, energy float64, pid fluxmeter.PID, grid scan.Grid, seed uint64, theme render.Theme) (*scan.Map, error) {
	p := tea.NewProgram(NewModel(label, theme))

	scanner.OnCell = func(done, total int) {
		// Send is safe from worker goroutines and drops after quit.
		if done == total || done%16 == 0 {
			p.Send(progressMsg{done: done, total: total})
		}
	}
	go func() {
		result, err := scanner.Scan(position, energy, pid, grid, seed)
		p.Send(doneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(Model)
	if m.stopped {
		return nil, nil
	}
	return m.result, m.err
}
