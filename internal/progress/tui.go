package progress

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"uf2flash/pkg/uf2"
)

var (
	tuiLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399")).
			Bold(true)

	tuiDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	tuiErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

type startMsg struct{ total int }
type advanceMsg struct{ n int }
type finishMsg struct{}
type workDoneMsg struct{ err error }

type model struct {
	label    string
	bar      progress.Model
	total    int
	done     int
	finished bool
	err      error
}

func newModel(label string) model {
	return model{label: label, bar: progress.New(progress.WithDefaultGradient())}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
	case startMsg:
		m.total = msg.total
	case advanceMsg:
		m.done += msg.n
	case finishMsg:
		m.finished = true
	case workDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n%s\n", tuiLabelStyle.Render(m.label), tuiErrorStyle.Render(m.err.Error()))
	}
	if m.finished {
		return fmt.Sprintf("%s\n%s\n", tuiLabelStyle.Render(m.label), tuiDoneStyle.Render("done"))
	}
	return fmt.Sprintf("%s\n%s\n", tuiLabelStyle.Render(m.label), m.bar.ViewAs(pct))
}

// programReporter adapts a running tea.Program into a uf2.ProgressReporter
// by funneling calls through Program.Send, which is safe to call from any
// goroutine.
type programReporter struct {
	program *tea.Program
}

func (r *programReporter) Start(total int) { r.program.Send(startMsg{total}) }
func (r *programReporter) Advance(n int)   { r.program.Send(advanceMsg{n}) }
func (r *programReporter) Finish()         { r.program.Send(finishMsg{}) }

// Run drives a bubbletea progress bar while work runs concurrently,
// feeding it a uf2.ProgressReporter wired to the program's message loop.
// It blocks until the TUI exits and returns whatever error work returned.
func Run(label string, work func(uf2.ProgressReporter) error) error {
	p := tea.NewProgram(newModel(label))
	reporter := &programReporter{program: p}

	go func() {
		err := work(reporter)
		p.Send(workDoneMsg{err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
