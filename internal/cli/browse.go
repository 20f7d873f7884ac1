package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Lucretia/gnat-llvm/repinfo"
	"github.com/Lucretia/gnat-llvm/unit"
	"github.com/Lucretia/gnat-llvm/verify"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

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

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <unit.cue>",
		Short: "Browse types and their alternates interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newBrowseModel(args[0], rootOpts.open, verify.Options{
				Engine:     verify.Engine(rootOpts.Config.Verify.Engine),
				MaxSamples: rootOpts.Config.Verify.MaxSamples,
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
	return cmd
}

type browseState int

const (
	stateList browseState = iota
	stateFilter
	stateDetail
	stateChecks
)

type browseModel struct {
	err      error
	checkErr error
	unit     *unit.Context
	report   *repinfo.Report
	checks   *verify.Result
	open     func(string) (*unit.Context, error)
	filename string
	filter   textinput.Model
	visible  []int
	vopts    verify.Options
	selected int
	state    browseState
}

func newBrowseModel(filename string, open func(string) (*unit.Context, error), vopts verify.Options) *browseModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "type name"
	ti.Width = 30
	return &browseModel{
		filename: filename,
		open:     open,
		filter:   ti,
		vopts:    vopts,
		state:    stateList,
	}
}

type loadedMsg struct {
	err    error
	unit   *unit.Context
	report *repinfo.Report
}

type checkedMsg struct {
	err    error
	result *verify.Result
}

func (m *browseModel) Init() tea.Cmd {
	return m.load
}

func (m *browseModel) load() tea.Msg {
	c, err := m.open(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	r, err := repinfo.Build(c)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{unit: c, report: r}
}

func (m *browseModel) runChecks() tea.Msg {
	res, err := verify.Run(context.Background(), m.unit, m.vopts)
	return checkedMsg{err: err, result: res}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateFilter {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateList && m.report != nil {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			switch m.state {
			case stateList:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail, stateChecks:
				m.state = stateList
			}

		case "v":
			if m.unit != nil && m.state != stateChecks {
				return m, m.runChecks
			}

		case "esc":
			if m.state != stateList {
				m.state = stateList
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.unit, m.report = msg.unit, msg.report
		m.refilter()

	case checkedMsg:
		m.checks, m.checkErr = msg.result, msg.err
		m.state = stateChecks
	}
	return m, nil
}

func (m *browseModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter", "esc":
		m.filter.Blur()
		m.state = stateList
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refilter()
	return m, cmd
}

// refilter keeps the types whose name contains the filter text and moves
// the selection to the first of them.
func (m *browseModel) refilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, t := range m.report.Types {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
}

func (m *browseModel) current() (repinfo.Type, bool) {
	if m.selected >= len(m.visible) {
		return repinfo.Type{}, false
	}
	return m.report.Types[m.visible[m.selected]], true
}

func (m *browseModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.report == nil {
		return "Loading unit..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("unit " + m.report.Unit))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		for i, idx := range m.visible {
			t := m.report.Types[idx]
			line := fmt.Sprintf("%-16s %s", t.Name, kindStyle.Render(t.Kind))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • v verify • q quit"))

	case stateDetail:
		t, _ := m.current()
		b.WriteString(nameStyle.Render(t.Header()))
		b.WriteString("\n\n")
		for _, a := range t.Alternates {
			b.WriteString("  " + a.String() + "\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back • v verify • q quit"))

	case stateChecks:
		b.WriteString("Conversion checks:\n\n")
		if m.checkErr != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.checkErr)))
			b.WriteString("\n")
		} else {
			for _, c := range m.checks.Checks {
				head := fmt.Sprintf("%s %s %s", c.Type, c.Kind, c.Physical)
				switch {
				case c.Skipped != "":
					b.WriteString(helpStyle.Render(head + ": " + c.Skipped))
				case c.OK():
					b.WriteString(resultStyle.Render(fmt.Sprintf("%s: %d values ok", head, c.Samples)))
				default:
					b.WriteString(errorStyle.Render(fmt.Sprintf("%s: %d failures", head, len(c.Failures))))
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}
