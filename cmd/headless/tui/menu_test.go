package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/output"
)

var names = []string{"homebrew", "power", "ollama", "colima"}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	quit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func TestNewModelAppendsAll(t *testing.T) {
	m := NewModel(Options{Components: names})
	assert.Equal(t, append(append([]string{}, names...), component.All), m.items)
	assert.False(t, m.loading)
	assert.Nil(t, m.Init())
}

func TestSelectComponentThenVerb(t *testing.T) {
	m := NewModel(Options{Components: names})

	m, cmd := press(t, m, down, down, enter)
	assert.Nil(t, cmd)
	assert.Equal(t, stageVerb, m.stage)
	assert.Equal(t, "ollama", m.chosen)

	m, cmd = press(t, m, down, down, enter)
	assert.True(t, isQuit(cmd))

	sel, ok := m.Selection()
	require.True(t, ok)
	assert.Equal(t, Selection{Component: "ollama", Verb: component.VerbDisable}, sel)
}

func TestCursorStaysInRange(t *testing.T) {
	m := NewModel(Options{Components: names})

	m, _ = press(t, m, up, up)
	assert.Equal(t, 0, m.cursor)

	for i := 0; i < 10; i++ {
		m, _ = press(t, m, down)
	}
	assert.Equal(t, len(names), m.cursor)
	assert.Equal(t, component.All, m.items[m.cursor])
}

func TestBackReturnsToComponents(t *testing.T) {
	m := NewModel(Options{Components: names})

	m, _ = press(t, m, down, enter, down, esc)
	assert.Equal(t, stageComponent, m.stage)
	assert.Equal(t, 1, m.cursor, "cursor returns to the chosen component")

	_, ok := m.Selection()
	assert.False(t, ok)
}

func TestQuitWithoutSelection(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
	}{
		{"q on components", []tea.KeyMsg{quit}},
		{"esc on components", []tea.KeyMsg{esc}},
		{"q on verbs", []tea.KeyMsg{enter, quit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(t, NewModel(Options{Components: names}), tt.keys...)
			assert.True(t, isQuit(cmd))
			_, ok := m.Selection()
			assert.False(t, ok)
		})
	}
}

func TestStatusLoad(t *testing.T) {
	report := &output.Report{Components: []output.ComponentStatus{
		{Name: "homebrew", Installed: true, Enabled: true},
		{Name: "ollama", Installed: true},
		{Name: "colima"},
	}}
	fn := func(context.Context) (*output.Report, error) { return report, nil }

	m := NewModel(Options{Components: names, Status: fn})
	assert.True(t, m.loading)
	assert.NotNil(t, m.Init())

	msg := loadStatus(context.Background(), fn)()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.loading)
	assert.Equal(t, "enabled", m.states["homebrew"])
	assert.Equal(t, "disabled", m.states["ollama"])
	assert.Equal(t, "not installed", m.states["colima"])

	view := m.View()
	assert.Contains(t, view, "enabled")
	assert.Contains(t, view, "not installed")
}

func TestStatusLoadError(t *testing.T) {
	fn := func(context.Context) (*output.Report, error) { return nil, errors.New("boom") }
	m := NewModel(Options{Components: names, Status: fn})

	next, _ := m.Update(loadStatus(context.Background(), fn)())
	m = next.(Model)

	assert.False(t, m.loading)
	assert.Contains(t, m.View(), "status unavailable: boom")
}

func TestViewShowsVerbs(t *testing.T) {
	m, _ := press(t, NewModel(Options{Components: names}), enter)
	view := m.View()

	assert.Contains(t, view, "What should happen to homebrew?")
	for _, v := range component.Verbs() {
		assert.Contains(t, view, string(v))
	}
}

func TestHelpToggle(t *testing.T) {
	m := NewModel(Options{Components: names})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.True(t, m.help.ShowAll)
}
