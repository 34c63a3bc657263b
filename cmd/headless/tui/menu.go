package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/output"
)

// StatusFunc loads the status shown next to each component.
type StatusFunc func(ctx context.Context) (*output.Report, error)

// Options configures the menu.
type Options struct {
	// Context bounds the status load.
	Context context.Context

	// Components are offered in this order, followed by "all".
	Components []string

	// Status, when set, is loaded in the background while the menu is shown.
	Status StatusFunc
}

// Selection is the operator's choice.
type Selection struct {
	Component string
	Verb      component.Verb
}

type stage int

const (
	stageComponent stage = iota
	stageVerb
)

// statusMsg carries the result of the background status load.
type statusMsg struct {
	report *output.Report
	err    error
}

// Model is the Bubble Tea model for the menu.
type Model struct {
	opts Options

	stage  stage
	items  []string
	verbs  []component.Verb
	cursor int
	chosen string

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	loading   bool
	states    map[string]string
	statusErr error

	selection *Selection
	width     int
}

// NewModel creates the menu model.
func NewModel(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = mutedTextStyle

	items := make([]string, 0, len(opts.Components)+1)
	items = append(items, opts.Components...)
	items = append(items, component.All)

	return Model{
		opts:    opts,
		items:   items,
		verbs:   component.Verbs(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: s,
		loading: opts.Status != nil,
		states:  make(map[string]string),
		width:   80,
	}
}

// Init starts the status load.
func (m Model) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	return tea.Batch(m.spinner.Tick, loadStatus(m.opts.Context, m.opts.Status))
}

func loadStatus(ctx context.Context, fn StatusFunc) tea.Cmd {
	return func() tea.Msg {
		report, err := fn(ctx)
		return statusMsg{report: report, err: err}
	}
}

// Selection returns the operator's choice, if one was made before quitting.
func (m Model) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case statusMsg:
		m.loading = false
		m.statusErr = msg.err
		if msg.report != nil {
			for _, c := range msg.report.Components {
				m.states[c.Name] = c.State()
			}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.rows()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Back):
		if m.stage == stageComponent {
			return m, tea.Quit
		}
		m.stage = stageComponent
		m.cursor = indexOf(m.items, m.chosen)

	case key.Matches(msg, m.keys.Select):
		if m.stage == stageComponent {
			m.chosen = m.items[m.cursor]
			m.stage = stageVerb
			m.cursor = 0
			return m, nil
		}
		m.selection = &Selection{Component: m.chosen, Verb: m.verbs[m.cursor]}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) rows() int {
	if m.stage == stageComponent {
		return len(m.items)
	}
	return len(m.verbs)
}

func indexOf(items []string, s string) int {
	for i, item := range items {
		if item == s {
			return i
		}
	}
	return 0
}

// View renders the menu.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("headless"))
	b.WriteString("\n\n")

	if m.stage == stageComponent {
		b.WriteString(mutedTextStyle.Render("Choose a component"))
		b.WriteString("\n\n")
		for i, name := range m.items {
			b.WriteString(m.row(i, fmt.Sprintf("%-10s", name), m.stateLabel(name)))
		}
	} else {
		b.WriteString(mutedTextStyle.Render(fmt.Sprintf("What should happen to %s?", m.chosen)))
		b.WriteString("\n\n")
		for i, v := range m.verbs {
			label := string(v)
			if v == component.VerbRemove {
				label = destructiveStyle.Render(label)
			}
			b.WriteString(m.row(i, label, ""))
		}
	}

	if m.statusErr != nil {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render("status unavailable: " + m.statusErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return outerBoxStyle.Render(b.String())
}

func (m Model) row(i int, label, suffix string) string {
	cursor := "  "
	if i == m.cursor {
		cursor = selectedStyle.Render("› ")
		label = selectedStyle.Render(label)
	}
	if suffix != "" {
		label += "  " + suffix
	}
	return cursor + label + "\n"
}

func (m Model) stateLabel(name string) string {
	if name == component.All {
		return ""
	}
	if m.loading {
		return m.spinner.View()
	}
	state, ok := m.states[name]
	if !ok {
		return ""
	}
	return output.StateStyle(state).Render(state)
}

// Run shows the menu until the operator picks a verb or quits. ok is false
// when the operator quit without choosing.
func Run(opts Options) (sel Selection, ok bool, err error) {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, fmt.Errorf("running menu: %w", err)
	}
	m, _ := final.(Model)
	sel, ok = m.Selection()
	return sel, ok, nil
}
