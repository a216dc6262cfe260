package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbrennan/huesic/internal/models"
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("229"))

type statusMessage struct {
	status models.EngineStatus
}

type Tui struct {
	teaProgram *tea.Program
}

func NewTui() Tui {
	m := NewModel()
	p := tea.NewProgram(m, tea.WithAltScreen())
	return Tui{p}
}

func (t Tui) Run() error {
	_, err := t.teaProgram.Run()
	return err
}

// Refresh pushes a fresh engine snapshot into the UI.
func (t Tui) Refresh(status models.EngineStatus) {
	t.teaProgram.Send(statusMessage{status: status})
}

func (t Tui) Quit() {
	t.teaProgram.Quit()
}

type Model struct {
	table table.Model
	state string
	track string
}

func NewModel() *Model {

	columns := []table.Column{
		{Title: "Light", Width: 24},
		{Title: "Color", Width: 9},
		{Title: "Reachable", Width: 9},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(7),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{table: t, state: "idle"}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case statusMessage:
		m.state = msg.status.State
		if msg.status.Track != nil {
			m.track = fmt.Sprintf("%s - %s", msg.status.Track.Artist, msg.status.Track.Name)
		}

		rows := make([]table.Row, 0)
		for _, l := range msg.status.Lights {
			color := ""
			if l.Applied != nil {
				color = l.Applied.Hex()
			}
			rows = append(rows, []string{l.Name, color, fmt.Sprint(l.Reachable)})
		}
		m.table.SetRows(rows)
		m.table.UpdateViewport()
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	header := headerStyle.Render(fmt.Sprintf("huesic [%s]", m.state))
	if m.track != "" {
		header += "  " + m.track
	}
	return header + "\n" + baseStyle.Render(m.table.View()) + "\n"
}
