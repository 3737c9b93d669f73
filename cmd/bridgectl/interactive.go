package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/objbridge/internal/scenario"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <scenario.yaml>",
	Short: "Step through a scenario interactively",
	Long: `inspect opens a terminal UI that executes the scenario one step at a
time and accepts extra steps typed in their one-line form, e.g.

  new w type=Widget native=Button owned
  set_parent b parent=w
  expect b valid=false

When stdout is not a terminal the scenario is run like "bridgectl run".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			logger.Info("stdout is not a terminal, running non-interactively")
			return runScenario(cmd.OutOrStdout(), args[0])
		}
		return runInteractive(args[0])
	},
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historySize = 6

type modelState int

const (
	stateSteps modelState = iota
	stateInput
)

type historyEntry struct {
	step string
	err  error
}

type inspectModel struct {
	err      error
	session  *session
	filename string
	input    textinput.Model
	history  []historyEntry
	next     int
	state    modelState
}

type loadedMsg struct {
	err     error
	session *session
}

func newInspectModel(filename string) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = "new w type=Widget owned"
	ti.Prompt = "step> "
	ti.Width = 60
	return &inspectModel{
		filename: filename,
		input:    ti,
		state:    stateSteps,
	}
}

func (m *inspectModel) Init() tea.Cmd {
	return m.load
}

func (m *inspectModel) load() tea.Msg {
	s, err := openSession(m.filename)
	return loadedMsg{session: s, err: err}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateInput {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "n", "enter":
			m.runNext()

		case "a":
			for m.session != nil && m.next < len(m.session.sc.Steps) {
				if !m.runNext() {
					break
				}
			}

		case ":", "i":
			if m.session != nil {
				m.state = stateInput
				m.input.SetValue("")
				return m, m.input.Focus()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
	}
	return m, nil
}

func (m *inspectModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return m, tea.Quit

	case "esc":
		m.input.Blur()
		m.state = stateSteps
		return m, nil

	case "enter":
		line := strings.TrimSpace(m.input.Value())
		if line != "" {
			step, err := scenario.ParseStep(line)
			if err != nil {
				m.record(line, err)
			} else {
				m.record(step.String(), m.session.runner.Exec(step))
			}
		}
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runNext executes the next scenario step and reports whether it succeeded.
func (m *inspectModel) runNext() bool {
	if m.session == nil || m.next >= len(m.session.sc.Steps) {
		return false
	}
	step := m.session.sc.Steps[m.next]
	m.next++
	err := m.session.runner.Exec(step)
	m.record(step.String(), err)
	return err == nil
}

func (m *inspectModel) record(step string, err error) {
	m.history = append(m.history, historyEntry{step: step, err: err})
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m *inspectModel) close() {
	if m.session != nil {
		_ = m.session.runner.Close()
	}
}

func (m *inspectModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.session == nil {
		return "Loading scenario..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Object Bridge"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	steps := m.session.sc.Steps
	b.WriteString(fmt.Sprintf("Steps (%d/%d):\n", m.next, len(steps)))
	for i, s := range steps {
		line := s.String()
		switch {
		case i < m.next:
			b.WriteString(doneStyle.Render("  " + line))
		case i == m.next:
			b.WriteString(selectedStyle.Render("> " + line))
		default:
			b.WriteString(stepStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var report strings.Builder
	if err := printReport(&report, m.session.runner); err != nil {
		b.WriteString(errorStyle.Render(err.Error()))
	} else {
		b.WriteString(report.String())
	}
	b.WriteString("\n")

	for _, h := range m.history {
		if h.err != nil {
			b.WriteString(errorStyle.Render("✗ " + h.err.Error()))
		} else {
			b.WriteString(resultStyle.Render("✓ " + h.step))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state == stateInput {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run step • esc back"))
	} else {
		b.WriteString(helpStyle.Render("n next step • a run all • : type a step • q quit"))
	}
	return b.String()
}

func runInteractive(filename string) error {
	m := newInspectModel(filename)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return m.err
}
